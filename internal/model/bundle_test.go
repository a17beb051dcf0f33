package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, dir string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, VariablesDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SavedModelPB), []byte("\x08\x01"), 0o644))
	return dir
}

func TestValidateBundle(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		setup   func() string
		wantErr error
	}{
		{
			name:  "valid",
			setup: func() string { return writeBundle(t, filepath.Join(root, "valid")) },
		},
		{
			name: "pbtxt",
			setup: func() string {
				dir := filepath.Join(root, "pbtxt")
				require.NoError(t, os.MkdirAll(filepath.Join(dir, VariablesDir), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, SavedModelPBTxt), []byte("meta_graphs {}"), 0o644))
				return dir
			},
		},
		{
			name:    "missing",
			setup:   func() string { return filepath.Join(root, "translator") },
			wantErr: ErrBundleMissing,
		},
		{
			name: "file instead of directory",
			setup: func() string {
				p := filepath.Join(root, "file")
				require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
				return p
			},
			wantErr: ErrBundleCorrupt,
		},
		{
			name: "empty graph",
			setup: func() string {
				dir := writeBundle(t, filepath.Join(root, "empty"))
				require.NoError(t, os.WriteFile(filepath.Join(dir, SavedModelPB), nil, 0o644))
				return dir
			},
			wantErr: ErrBundleCorrupt,
		},
		{
			name: "no variables",
			setup: func() string {
				dir := writeBundle(t, filepath.Join(root, "novars"))
				require.NoError(t, os.RemoveAll(filepath.Join(dir, VariablesDir)))
				return dir
			},
			wantErr: ErrBundleCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBundle(tt.setup())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
