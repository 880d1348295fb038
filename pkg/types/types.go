// Package types contains the shared data structures used across the
// avatar backend: document chunks, conversation turns, and the HTTP
// request/response shapes.
package types

import "time"

// Chunk is a bounded span of source document text, the unit of retrieval.
// The embedding vector is computed at index-build time and stored alongside
// the chunk; it is not carried on the struct after retrieval.
type Chunk struct {
	// ID uniquely identifies the chunk within its namespace,
	// in the format chunk:<namespace>:<slug>.
	ID string `json:"id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Source identifies the originating document (typically a filename).
	Source string `json:"source"`

	// Position is the zero-based position of the chunk within its source
	// document. Used for stable tie-breaking in similarity search.
	Position int `json:"position"`
}

// Turn is one completed question/answer exchange in a conversation.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// Question is the request body for the ask endpoints.
type Question struct {
	Text      string   `json:"text"`
	UserID    string   `json:"user_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Context   []string `json:"context,omitempty"`
}

// Answer is the response body for the ask endpoints.
type Answer struct {
	Text          string   `json:"text"`
	Sources       []string `json:"sources"`
	PersonalityID string   `json:"personality_id"`
}

// HealthCheck is the response body for the health endpoint.
type HealthCheck struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
