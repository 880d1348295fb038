package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOverloaded marks a provider failure caused by capacity exhaustion.
// The boundary layer maps it to HTTP 503 with a retry-later hint; every
// other provider failure is absorbed by the engine instead.
var ErrOverloaded = errors.New("llm provider overloaded")

// StatusError is a provider HTTP failure with its status code preserved,
// so callers can classify structurally instead of parsing messages.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// overloadStatusCodes are the provider status codes that signal capacity
// exhaustion rather than a request defect. 529 is Anthropic's
// "overloaded_error"; 429 and 503 are the conventional codes.
var overloadStatusCodes = map[int]bool{
	429: true,
	503: true,
	529: true,
}

// overloadMarkers is the last-resort substring fallback for providers
// that surface overload only in prose. Structured status codes are
// always consulted first.
var overloadMarkers = []string{
	"overloaded",
	"rate limit",
	"too many requests",
	"capacity",
}

// IsOverloaded reports whether err represents provider capacity
// exhaustion. It prefers the structured status code on StatusError and
// falls back to message inspection only when no code is available.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOverloaded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return overloadStatusCodes[se.StatusCode]
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range overloadMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
