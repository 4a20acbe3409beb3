package models

import (
	"fmt"
	"path"
	"strings"
)

// FileTree maps relative file paths to their contents. Directories are
// implicit in the path structure; every value is a file node. The wire
// shape matches what clients and the assistant exchange:
//
//	{"src/index.js": {"file": {"contents": "..."}}}
type FileTree map[string]FileNode

// FileNode wraps file contents under the "file" key.
type FileNode struct {
	File FileContents `json:"file"`
}

// FileContents holds the textual contents of a single file.
type FileContents struct {
	Contents string `json:"contents"`
}

// NewFileNode builds a file node for the given contents.
func NewFileNode(contents string) FileNode {
	return FileNode{File: FileContents{Contents: contents}}
}

// Validate checks that the tree is non-empty and every path is a clean
// relative path that stays inside the tree root.
func (t FileTree) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("file tree is empty")
	}
	for p := range t {
		if p == "" {
			return fmt.Errorf("file tree contains an empty path")
		}
		if strings.HasPrefix(p, "/") {
			return fmt.Errorf("file tree path %q is absolute", p)
		}
		clean := path.Clean(p)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("file tree path %q escapes the tree root", p)
		}
	}
	return nil
}
