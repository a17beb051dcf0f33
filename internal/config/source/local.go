package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/xfs"
)

// LocalResolver resolves a bundle that already lives on disk.
// Relative paths are resolved against the working directory, so the
// default "translator" source finds ./translator next to the binary's cwd.
type LocalResolver struct{}

// Download returns the absolute bundle path. Nothing is transferred; the
// directory is not checked here, bundle validation happens when loading.
func (r *LocalResolver) Download(_ context.Context, modelConfig *config.ModelConfig, _ string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	local, ok := src.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	p := strings.TrimSpace(local.Path)
	if p == "" {
		return "", false, fmt.Errorf("invalid local path: %q", local.Path)
	}

	abs, err := filepath.Abs(xfs.ExpandTilde(p))
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve %s: %w", p, err)
	}

	return abs, true, nil
}
