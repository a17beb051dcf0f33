// Package source resolves model sources into bundle directories on disk.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/ekisa-team/anubad/internal/config"
)

// Downloader makes a model source available locally.
type Downloader interface {
	// Download returns the local directory of the model and whether it was
	// already present (no transfer happened).
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for the given source type.
func GetDownloader(_ context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeLocal:
		return &LocalResolver{}, nil
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}

// EnsureModelsDirectory creates the models directory if needed.
func EnsureModelsDirectory(path string) error {
	if path == "" {
		return fmt.Errorf("models directory is empty")
	}

	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		return nil
	}

	if !os.IsNotExist(err) {
		return err
	}

	return os.MkdirAll(path, 0o755)
}
