// Package handlers provides the HTTP handlers and middleware for the
// avatar REST API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/civiclens/avatar/internal/engine"
	"github.com/civiclens/avatar/internal/llm"
	"github.com/civiclens/avatar/internal/personality"
	"github.com/civiclens/avatar/pkg/types"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	registry *personality.Registry
	pool     *engine.SessionPool
	hub      *WebSocketHub // optional; nil disables answer events
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(registry *personality.Registry, pool *engine.SessionPool) *APIHandlers {
	return &APIHandlers{registry: registry, pool: pool}
}

// SetHub attaches a WebSocket hub for answer-event broadcasting.
func (h *APIHandlers) SetHub(hub *WebSocketHub) {
	h.hub = hub
}

// ListPersonalities handles GET /personalities.
func (h *APIHandlers) ListPersonalities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.List())
}

// GetPersonality handles GET /personalities/{id}. Unknown ids are a 404:
// listing and lookup are strict even though asking degrades gracefully.
func (h *APIHandlers) GetPersonality(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	desc, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, personality.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("personality %q not found", id), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to look up personality", err)
		return
	}
	respondJSON(w, http.StatusOK, desc)
}

// Ask handles POST /personalities/{id}/ask. Unknown personality ids are
// answered with the generic default strategy rather than rejected.
func (h *APIHandlers) Ask(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, r.PathValue("id"))
}

// AskDefault handles the legacy POST /ask route against the general
// personality.
func (h *APIHandlers) AskDefault(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, personality.DefaultID)
}

func (h *APIHandlers) ask(w http.ResponseWriter, r *http.Request, personalityID string) {
	var req types.Question
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required", nil)
		return
	}

	eng := h.pool.GetOrCreate(r.Context(), personalityID, req.UserID)

	start := time.Now()
	answer, err := eng.Ask(r.Context(), req.Text)
	if err != nil {
		if llm.IsOverloaded(err) {
			respondError(w, http.StatusServiceUnavailable,
				"the model is overloaded, please try again shortly", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to answer question", err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastAnswer(personalityID, req.UserID, answer.Sources, time.Since(start))
	}

	respondJSON(w, http.StatusOK, answer)
}

// Reset handles POST /personalities/{id}/reset. Always succeeds, even
// for sessions that never existed.
func (h *APIHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, r.PathValue("id"))
}

// ResetDefault handles the legacy POST /reset route.
func (h *APIHandlers) ResetDefault(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, personality.DefaultID)
}

func (h *APIHandlers) reset(w http.ResponseWriter, r *http.Request, personalityID string) {
	var req ResetRequest
	// Body is optional for reset; decode errors just mean no user was given.
	_ = json.NewDecoder(r.Body).Decode(&req)

	h.pool.Reset(personalityID, req.UserID)
	respondJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

// Health handles GET /health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, types.HealthCheck{Status: "ok", Version: Version})
}

// Helper functions

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing more we can do.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
