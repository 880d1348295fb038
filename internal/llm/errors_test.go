package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOverloaded(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrOverloaded, true},
		{"wrapped sentinel", fmt.Errorf("ask failed: %w", ErrOverloaded), true},
		{"status 429", &StatusError{Provider: "openai", StatusCode: 429}, true},
		{"status 503", &StatusError{Provider: "ollama", StatusCode: 503}, true},
		{"status 529", &StatusError{Provider: "anthropic", StatusCode: 529}, true},
		{"status 500", &StatusError{Provider: "openai", StatusCode: 500}, false},
		{"status 401", &StatusError{Provider: "openai", StatusCode: 401}, false},
		{"wrapped status", fmt.Errorf("complete: %w", &StatusError{StatusCode: 429}), true},
		{"overloaded message", errors.New("the model is overloaded right now"), true},
		{"rate limit message", errors.New("Rate Limit exceeded"), true},
		{"capacity message", errors.New("provider is at capacity"), true},
		{"unrelated message", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOverloaded(tt.err))
		})
	}
}

func TestStatusCodeBeatsMessage(t *testing.T) {
	// A structured non-overload status wins even when the body happens
	// to mention a marker word.
	err := &StatusError{Provider: "openai", StatusCode: 400, Body: "invalid capacity parameter"}
	assert.False(t, IsOverloaded(err))
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Provider: "openai", StatusCode: 429, Body: "slow down"}
	assert.Equal(t, "openai returned status 429: slow down", err.Error())
}
