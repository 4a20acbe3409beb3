package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/devroom-sh/devroom/internal/genai"
	"github.com/devroom-sh/devroom/internal/metrics"
)

// GetResult generates an AI response for a prompt passed as a query
// parameter. The raw model output is returned as-is so clients can
// apply their own payload parsing.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	prompt := strings.TrimSpace(r.URL.Query().Get("prompt"))
	if prompt == "" {
		h.Error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	result, err := h.gen.Generate(r.Context(), prompt)
	if err != nil {
		metrics.AIPrompts.WithLabelValues("error").Inc()
		if errors.Is(err, genai.ErrNotConfigured) {
			h.Error(w, http.StatusServiceUnavailable, "AI generation is not configured")
			return
		}
		h.Error(w, http.StatusBadGateway, "AI generation failed")
		return
	}

	metrics.AIPrompts.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(result))
}
