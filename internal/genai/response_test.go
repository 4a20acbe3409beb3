package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseText(t *testing.T) {
	resp := ParseResponse(`{"type":"text","text":"hello there"}`)
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "hello there", resp.Text)
	assert.Empty(t, resp.FileTree)
}

func TestParseResponseProject(t *testing.T) {
	raw := `{
		"text": "Here is your app",
		"fileTree": {"index.js": {"file": {"contents": "console.log(1)"}}},
		"buildCommand": {"mainItem": "npm", "commands": ["install"]},
		"startCommand": {"mainItem": "npm", "commands": ["start"]},
		"terminalOutput": "ok"
	}`

	resp := ParseResponse(raw)
	require.Equal(t, KindProject, resp.Kind)
	assert.Equal(t, "Here is your app", resp.Text)
	assert.Equal(t, "console.log(1)", resp.FileTree["index.js"].File.Contents)
	require.NotNil(t, resp.BuildCommand)
	assert.Equal(t, "npm", resp.BuildCommand.MainItem)
	assert.Equal(t, []string{"install"}, resp.BuildCommand.Commands)
	require.NotNil(t, resp.StartCommand)
	assert.Equal(t, []string{"start"}, resp.StartCommand.Commands)
	assert.Equal(t, "ok", resp.TerminalOutput)
}

func TestParseResponseMalformedFallsBackToRaw(t *testing.T) {
	raw := "Sorry, I can't produce JSON today."

	resp := ParseResponse(raw)
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, raw, resp.Text)
}

func TestParseResponseEmptyTextFallsBackToRaw(t *testing.T) {
	raw := `{"unexpected": "shape"}`

	resp := ParseResponse(raw)
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, raw, resp.Text)
}

func TestParseResponseEmptyTreeIsText(t *testing.T) {
	resp := ParseResponse(`{"text":"no files here","fileTree":{}}`)
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "no files here", resp.Text)
}
