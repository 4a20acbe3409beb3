package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNotConfigured(t *testing.T) {
	c := NewClient("", "gemini-1.5-flash", "", time.Second)
	_, err := c.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateSuccess(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "models/gemini-1.5-flash:generateContent")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]any{
						{"text": `{"type":"text",`},
						{"text": `"text":"answer"}`},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", "gemini-1.5-flash", srv.URL, 5*time.Second)
	raw, err := c.Generate(context.Background(), "build me an app")
	require.NoError(t, err)

	// Parts are concatenated in order
	assert.Equal(t, `{"type":"text","text":"answer"}`, raw)

	// The request carries the prompt, the system instruction, and the
	// JSON response mode.
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "build me an app", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.NotEmpty(t, gotReq.SystemInstruction.Parts[0].Text)
	require.NotNil(t, gotReq.GenerationConfig)
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMIMEType)
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "API key not valid"},
		})
	}))
	defer srv.Close()

	c := NewClient("bad-key", "", srv.URL, 5*time.Second)
	_, err := c.Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestGenerateNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	c := NewClient("test-key", "", srv.URL, 5*time.Second)
	_, err := c.Generate(context.Background(), "hi")
	require.Error(t, err)
}

func TestGenerateContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient("test-key", "", srv.URL, 0)
	_, err := c.Generate(ctx, "hi")
	require.Error(t, err)
}
