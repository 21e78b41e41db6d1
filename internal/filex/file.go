package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the parent directory of the given file path if it
// does not exist yet, and returns the absolute path to that directory. A plain
// file name with no directory component resolves against the working
// directory.
func EnsureParentDir(path string) (string, error) {
	dir := filepath.Dir(path)

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}
