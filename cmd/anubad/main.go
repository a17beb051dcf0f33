package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/env"
	"github.com/ekisa-team/anubad/internal/logger"
)

var version = "dev"

var (
	v        = config.NewViper()
	settings *config.Settings

	rootCmd = &cobra.Command{
		Use:   "anubad",
		Short: "Bengali to English translation server",
		Long: `anubad serves a saved Bengali to English translation model through a
browser page, a JSON API and a gRPC service.

The model bundle is read from the 'translator' directory unless a config file
says otherwise.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env", "development", "runtime environment (development, production)")
	pf.String("config", v.GetString("config"), "path to the YAML config file")
	pf.String("schema", "", "path to a JSON schema overriding the embedded one")
	pf.String("models-path", "", "directory downloaded models are stored in")
	pf.String("log-file", v.GetString("log_file"), "path of the rotated log file")
	pf.Bool("log-to-file", false, "also write logs to --log-file")

	bindFlags(pf, map[string]string{
		"env":         "env",
		"config":      "config",
		"schema":      "schema",
		"models-path": "models_path",
		"log-file":    "log_file",
		"log-to-file": "log_to_file",
	})
}

// bindFlags binds each flag to its viper key so flags override ANUBAD_*
// variables, which override defaults.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func setup(_ *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	s, err := config.LoadSettings(v)
	if err != nil {
		return err
	}
	settings = s

	slog.SetDefault(
		logger.New(env.Parse(s.Env),
			logger.WithLogToFile(s.LogToFile),
			logger.WithLogFile(s.LogFile),
		),
	)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
