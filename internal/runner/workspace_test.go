package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devroom-sh/devroom/internal/models"
)

func TestMaterializeWritesTree(t *testing.T) {
	root := t.TempDir()
	tree := models.FileTree{
		"index.js":        models.NewFileNode("console.log(1)"),
		"src/app/main.js": models.NewFileNode("export {}"),
	}

	dir, err := materialize(root, tree)
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	data, err := os.ReadFile(filepath.Join(dir, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "src", "app", "main.js"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(data))
}

func TestMaterializeRejectsEmptyTree(t *testing.T) {
	_, err := materialize(t.TempDir(), models.FileTree{})
	require.Error(t, err)
}

func TestMaterializeRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	tree := models.FileTree{
		"../outside.txt": models.NewFileNode("nope"),
	}

	_, err := materialize(root, tree)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "..", "outside.txt"))
}

func TestMaterializeFreshDirPerCall(t *testing.T) {
	root := t.TempDir()
	tree := models.FileTree{"a.txt": models.NewFileNode("a")}

	dir1, err := materialize(root, tree)
	require.NoError(t, err)
	dir2, err := materialize(root, tree)
	require.NoError(t, err)

	assert.NotEqual(t, dir1, dir2)
}
