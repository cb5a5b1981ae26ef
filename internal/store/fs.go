package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blobvault/blobvault/internal/shared"
)

// canonicalPath resolves path (symlinks included) and verifies it stays
// under the trusted root. The path must exist; for not-yet-written files
// canonicalize the parent directory instead.
func canonicalPath(root, path string) (string, error) {
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	if resolved != rootReal && !strings.HasPrefix(resolved, rootReal+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", path, shared.ErrorInvalidPath)
	}

	return resolved, nil
}

// containedPath verifies, lexically, that path lies under dir. Used before
// any directory creation so a traversal key never causes writes outside
// the root.
func containedPath(dir, path string) error {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, shared.ErrorInvalidPath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("%s: %w", path, shared.ErrorInvalidPath)
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
