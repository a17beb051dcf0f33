package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/model"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download and validate every configured model",
	Long: `Resolves every model assigned to the translate service: Hugging Face
sources are downloaded into the models directory and every bundle is
validated. Nothing is served.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(settings.ConfigPath, settings.SchemaPath)
	if err != nil {
		return err
	}

	var opts []model.ManagerOption
	if settings.ModelsPath != "" {
		opts = append(opts, model.WithModelsPath(settings.ModelsPath))
	}
	manager := model.NewManager(opts...)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Pulling models"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	loadErr := manager.LoadModelsFromConfig(cmd.Context(), cfg)
	close(done)
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	for _, instance := range manager.Registry().List() {
		if err := instance.Err(); err != nil {
			fmt.Fprintf(out, "%-20s failed  %v\n", instance.ID, err)
			continue
		}
		fmt.Fprintf(out, "%-20s ready   %s\n", instance.ID, instance.Path)
	}

	return loadErr
}
