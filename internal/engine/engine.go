// Package engine runs retrieval-augmented conversations. Each engine
// instance serves one (personality, user) pair and carries that pair's
// history; the SessionPool hands out instances on demand.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/civiclens/avatar/internal/index"
	"github.com/civiclens/avatar/internal/llm"
	"github.com/civiclens/avatar/internal/prompt"
	"github.com/civiclens/avatar/pkg/types"
)

// State describes whether an engine answers from its knowledge base or
// without one.
type State string

const (
	// StateReady means the engine retrieves context from its index.
	StateReady State = "ready"
	// StateFallback means index construction failed and the engine
	// answers with empty context.
	StateFallback State = "fallback"
)

// FallbackSource marks answers produced while the knowledge base is
// unavailable.
const FallbackSource = "no knowledge base available"

const apologyAnswer = "I apologize, but I was unable to process your question right now. Please try again in a moment."

// now is swapped out in tests.
var now = time.Now

// ConversationEngine answers questions for one personality and user,
// keeping the conversation history between turns. Safe for concurrent
// use.
type ConversationEngine struct {
	personalityID string
	userID        string
	state         State
	idx           *index.Index
	assembler     *prompt.Assembler
	generator     llm.TextGenerator

	mu      sync.Mutex
	history []types.Turn
}

// NewConversationEngine builds an engine for the pair. Construction
// never fails: when the index cannot be built or opened the engine
// starts in fallback state and answers without retrieved context.
func NewConversationEngine(ctx context.Context, personalityID, userID string, manager *index.Manager, assembler *prompt.Assembler, generator llm.TextGenerator) *ConversationEngine {
	e := &ConversationEngine{
		personalityID: personalityID,
		userID:        userID,
		assembler:     assembler,
		generator:     generator,
	}

	idx, err := manager.Ensure(ctx, personalityID)
	if err != nil {
		log.Printf("Engine %s/%s starting in fallback mode: %v", personalityID, userID, err)
		e.state = StateFallback
		return e
	}

	e.state = StateReady
	e.idx = idx
	return e
}

// State reports whether the engine has a knowledge base.
func (e *ConversationEngine) State() State {
	return e.state
}

// Ask answers a question. Retrieved context and the conversation history
// are folded into the prompt; on success the turn is appended to the
// history.
//
// Provider overload surfaces as an error satisfying llm.IsOverloaded so
// the caller can shed load. Any other generation failure is absorbed
// into a fixed apology answer with no sources, and the history is left
// unchanged.
func (e *ConversationEngine) Ask(ctx context.Context, question string) (types.Answer, error) {
	chunks, sources := e.retrieve(ctx, question)

	contextTexts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contextTexts = append(contextTexts, chunk.Text)
	}

	e.mu.Lock()
	history := make([]types.Turn, len(e.history))
	copy(history, e.history)
	e.mu.Unlock()

	rendered := e.assembler.Render(e.personalityID, contextTexts, question, history)

	text, err := e.generator.Complete(ctx, rendered)
	if err != nil {
		if llm.IsOverloaded(err) {
			return types.Answer{}, fmt.Errorf("model overloaded: %w", err)
		}
		log.Printf("Generation failed for %s/%s: %v", e.personalityID, e.userID, err)
		return types.Answer{
			Text:          apologyAnswer,
			Sources:       []string{},
			PersonalityID: e.personalityID,
		}, nil
	}

	e.appendTurn(question, text)

	return types.Answer{
		Text:          text,
		Sources:       sources,
		PersonalityID: e.personalityID,
	}, nil
}

// retrieve queries the index for context. Fallback engines, and engines
// whose query fails, answer without context; the fallback source marker
// tells the client why.
func (e *ConversationEngine) retrieve(ctx context.Context, question string) ([]types.Chunk, []string) {
	if e.state == StateFallback || e.idx == nil {
		return nil, []string{FallbackSource}
	}

	chunks, err := e.idx.Query(ctx, question)
	if err != nil {
		log.Printf("Retrieval failed for %s/%s: %v", e.personalityID, e.userID, err)
		return nil, []string{FallbackSource}
	}
	return chunks, dedupeSources(chunks)
}

// History returns a copy of the conversation so far.
func (e *ConversationEngine) History() []types.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Turn, len(e.history))
	copy(out, e.history)
	return out
}

// Reset clears the conversation history. Idempotent.
func (e *ConversationEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

func (e *ConversationEngine) appendTurn(question, answer string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, types.Turn{
		Question: question,
		Answer:   answer,
		AskedAt:  now(),
	})
}

// dedupeSources collects distinct chunk sources preserving the order in
// which retrieval returned them.
func dedupeSources(chunks []types.Chunk) []string {
	seen := make(map[string]bool, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Source == "" || seen[chunk.Source] {
			continue
		}
		seen[chunk.Source] = true
		sources = append(sources, chunk.Source)
	}
	return sources
}
