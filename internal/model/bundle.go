package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ekisa-team/anubad/internal/xfs"
)

// Files that make up a saved model bundle.
const (
	SavedModelPB    = "saved_model.pb"
	SavedModelPBTxt = "saved_model.pbtxt"
	VariablesDir    = "variables"
)

// ValidateBundle checks that dir looks like a saved model bundle: a non-empty
// saved_model.pb (or .pbtxt) next to a variables directory.
func ValidateBundle(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBundleMissing, dir)
		}
		return fmt.Errorf("%w: %s: %v", ErrBundleMissing, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBundleCorrupt, dir)
	}

	pb := filepath.Join(dir, SavedModelPB)
	pbtxt := filepath.Join(dir, SavedModelPBTxt)
	if !xfs.NonEmptyFile(pb) && !xfs.NonEmptyFile(pbtxt) {
		return fmt.Errorf("%w: %s has no non-empty %s or %s", ErrBundleCorrupt, dir, SavedModelPB, SavedModelPBTxt)
	}

	if !xfs.IsDir(filepath.Join(dir, VariablesDir)) {
		return fmt.Errorf("%w: %s has no %s directory", ErrBundleCorrupt, dir, VariablesDir)
	}

	return nil
}
