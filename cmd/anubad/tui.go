package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/env"
	"github.com/ekisa-team/anubad/internal/logger"
	"github.com/ekisa-team/anubad/internal/tui"
)

var (
	tuiModel  string
	tuiRemote string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Translate interactively in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVarP(&tuiModel, "model", "m", "", "model id (default model when empty)")
	tuiCmd.Flags().StringVar(&tuiRemote, "remote", "", "gRPC address of a running server")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// The terminal belongs to the UI; logs only go to the file, if any.
	slog.SetDefault(logger.New(env.Parse(settings.Env),
		logger.WithWriter(io.Discard),
		logger.WithLogToFile(settings.LogToFile),
		logger.WithLogFile(settings.LogFile),
	))

	ui := config.Default().UI
	var loadErr error

	var translate tui.TranslateFunc
	if tuiRemote != "" {
		fn, closeFn, err := newTranslateFunc(cmd.Context(), tuiModel, tuiRemote)
		if err != nil {
			return err
		}
		defer closeFn()
		translate = fn
	} else {
		a, err := newLocalApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ui = a.translator.UI()
		loadErr = a.translator.LoadError(tuiModel)
		translate = func(ctx context.Context, text string) (string, error) {
			result, err := a.translator.Translate(ctx, tuiModel, text)
			if err != nil {
				return "", err
			}
			return result.Text, nil
		}
	}

	return tui.Run(tui.New(translate, ui, loadErr))
}
