package models

import (
	"encoding/json"
	"testing"
)

func TestFileTreeValidate(t *testing.T) {
	cases := []struct {
		name    string
		tree    FileTree
		wantErr bool
	}{
		{"valid flat", FileTree{"index.js": NewFileNode("x")}, false},
		{"valid nested", FileTree{"src/app/main.js": NewFileNode("x")}, false},
		{"empty tree", FileTree{}, true},
		{"empty path", FileTree{"": NewFileNode("x")}, true},
		{"absolute path", FileTree{"/etc/passwd": NewFileNode("x")}, true},
		{"escaping path", FileTree{"../../secret": NewFileNode("x")}, true},
		{"sneaky escape", FileTree{"a/../../secret": NewFileNode("x")}, true},
		{"dot segments resolving inside", FileTree{"a/../b.js": NewFileNode("x")}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tree.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFileTreeWireShape(t *testing.T) {
	raw := `{"src/index.js":{"file":{"contents":"console.log(1)"}}}`

	var tree FileTree
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		t.Fatal(err)
	}
	if got := tree["src/index.js"].File.Contents; got != "console.log(1)" {
		t.Fatalf("unexpected contents %q", got)
	}
}

