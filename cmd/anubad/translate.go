package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/anubad/internal/config"
	grpcserver "github.com/ekisa-team/anubad/internal/server/grpc"
	"github.com/ekisa-team/anubad/internal/service"
)

var (
	translateModel  string
	translateRemote string
)

var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Translate Bengali text once and print the English result",
	Long: `Translates the given text, or standard input when no text is given.

With --remote the text is sent to a running 'anubad serve' over gRPC;
otherwise the model is loaded in process.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateModel, "model", "m", "", "model id (default model when empty)")
	translateCmd.Flags().StringVar(&translateRemote, "remote", "", "gRPC address of a running server, e.g. localhost:9090")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: please enter some text to translate", service.ErrEmptyInput)
	}

	translate, closeFn, err := newTranslateFunc(cmd.Context(), translateModel, translateRemote)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := translate(cmd.Context(), text)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(raw), nil
}

// newTranslateFunc returns a translate function backed either by a remote
// gRPC server or by models loaded in process, and a func releasing it.
func newTranslateFunc(ctx context.Context, modelID, remote string) (func(context.Context, string) (string, error), func(), error) {
	if remote != "" {
		client, err := grpcserver.NewClient(remote)
		if err != nil {
			return nil, nil, err
		}

		return func(ctx context.Context, text string) (string, error) {
			return client.Translate(ctx, modelID, text)
		}, func() { _ = client.Close() }, nil
	}

	a, err := newLocalApp(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := a.translator.LoadError(modelID); err != nil {
		_ = a.Close()
		return nil, nil, fmt.Errorf("error loading model: %w", err)
	}

	return func(ctx context.Context, text string) (string, error) {
		result, err := a.translator.Translate(ctx, modelID, text)
		if err != nil {
			return "", err
		}
		return result.Text, nil
	}, func() { _ = a.Close() }, nil
}

func newLocalApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOrDefault(settings.ConfigPath, settings.SchemaPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, settings, cfg)
}
