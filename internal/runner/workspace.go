package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devroom-sh/devroom/internal/models"
)

// materialize writes a file tree into a fresh workspace directory and
// returns its path. Paths are joined defensively so a hostile tree
// cannot escape the workspace root.
func materialize(root string, tree models.FileTree) (string, error) {
	if err := tree.Validate(); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(root, "devroom-run-")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}

	for relPath, node := range tree {
		target := filepath.Join(dir, filepath.FromSlash(relPath))
		if !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
			os.RemoveAll(dir)
			return "", fmt.Errorf("file path %q escapes the workspace", relPath)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
		if err := os.WriteFile(target, []byte(node.File.Contents), 0644); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}

	return dir, nil
}
