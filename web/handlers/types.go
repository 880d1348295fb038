package handlers

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ResetRequest is the request format for POST /personalities/{id}/reset.
// The body is optional; an absent user resets the default session.
type ResetRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// StatusResponse is the response format for operations that only
// succeed or fail.
type StatusResponse struct {
	Status string `json:"status"`
}
