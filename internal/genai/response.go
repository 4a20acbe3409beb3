package genai

import (
	"encoding/json"
	"strings"

	"github.com/devroom-sh/devroom/internal/models"
)

// Kind discriminates the two answer variants.
type Kind int

const (
	// KindText is a plain conversational answer.
	KindText Kind = iota
	// KindProject is an answer carrying a generated file tree.
	KindProject
)

// Response is the parsed generation answer. The variant is decided once
// here, at the parse boundary: an answer with a non-empty file tree is
// a project, anything else is text.
type Response struct {
	Kind           Kind
	Text           string
	FileTree       models.FileTree
	BuildCommand   *models.Command
	StartCommand   *models.Command
	TerminalOutput string
}

// rawResponse is the upstream wire shape.
type rawResponse struct {
	Text           string          `json:"text"`
	FileTree       models.FileTree `json:"fileTree"`
	BuildCommand   *models.Command `json:"buildCommand"`
	StartCommand   *models.Command `json:"startCommand"`
	TerminalOutput string          `json:"terminalOutput"`
}

// ParseResponse decodes a raw generation answer. Malformed answers are
// never dropped: anything that fails to decode, or decodes without a
// usable text field, falls back to a text response carrying the raw
// answer so it still reaches the user.
func ParseResponse(raw string) Response {
	trimmed := strings.TrimSpace(raw)

	var parsed rawResponse
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return Response{Kind: KindText, Text: raw}
	}

	if len(parsed.FileTree) > 0 {
		return Response{
			Kind:           KindProject,
			Text:           parsed.Text,
			FileTree:       parsed.FileTree,
			BuildCommand:   parsed.BuildCommand,
			StartCommand:   parsed.StartCommand,
			TerminalOutput: parsed.TerminalOutput,
		}
	}

	if parsed.Text == "" {
		return Response{Kind: KindText, Text: raw}
	}
	return Response{Kind: KindText, Text: parsed.Text}
}
