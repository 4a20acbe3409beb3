package runner

import (
	"encoding/json"

	"github.com/devroom-sh/devroom/internal/models"
)

// packageManifest is the subset of package.json the resolver inspects.
type packageManifest struct {
	Scripts map[string]string `json:"scripts"`
}

// resolveCommands determines the build and start commands for a run.
// Precedence: an explicit package.json manifest in the tree wins, then
// the project-attached assistant suggestions, then nothing. A missing
// command is not an error; the corresponding step is skipped.
func resolveCommands(tree models.FileTree, suggestedBuild, suggestedStart *models.Command) (build, start *models.Command) {
	if node, ok := tree["package.json"]; ok {
		var manifest packageManifest
		if err := json.Unmarshal([]byte(node.File.Contents), &manifest); err == nil {
			build = &models.Command{MainItem: "npm", Commands: []string{"install"}}
			if _, ok := manifest.Scripts["start"]; ok {
				start = &models.Command{MainItem: "npm", Commands: []string{"start"}}
			}
		}
	}

	if build == nil {
		build = suggestedBuild
	}
	if start == nil {
		start = suggestedStart
	}
	return build, start
}
