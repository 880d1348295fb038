package engine

import (
	"context"
	"sync"

	"github.com/civiclens/avatar/internal/index"
	"github.com/civiclens/avatar/internal/llm"
	"github.com/civiclens/avatar/internal/prompt"
)

// DefaultUserID is used when a request carries no user identifier, so
// anonymous callers share one conversation per personality.
const DefaultUserID = "default"

// SessionPool hands out the ConversationEngine for a (personality, user)
// pair, creating it on first use. Concurrent requests for the same pair
// get the same instance; the engine for a pair is created exactly once
// even when its index build is slow.
type SessionPool struct {
	manager   *index.Manager
	assembler *prompt.Assembler
	generator llm.TextGenerator

	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
}

type sessionKey struct {
	personalityID string
	userID        string
}

// sessionEntry guards lazily built engines. Construction runs under the
// entry lock so a slow index build blocks only callers of the same pair.
type sessionEntry struct {
	mu     sync.Mutex
	engine *ConversationEngine
}

// NewSessionPool creates an empty pool.
func NewSessionPool(manager *index.Manager, assembler *prompt.Assembler, generator llm.TextGenerator) *SessionPool {
	return &SessionPool{
		manager:   manager,
		assembler: assembler,
		generator: generator,
		sessions:  make(map[sessionKey]*sessionEntry),
	}
}

// GetOrCreate returns the engine for the pair, creating it on first
// call. An empty userID maps to DefaultUserID.
func (p *SessionPool) GetOrCreate(ctx context.Context, personalityID, userID string) *ConversationEngine {
	if userID == "" {
		userID = DefaultUserID
	}
	key := sessionKey{personalityID, userID}

	p.mu.Lock()
	entry, ok := p.sessions[key]
	if !ok {
		entry = &sessionEntry{}
		p.sessions[key] = entry
	}
	p.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.engine == nil {
		entry.engine = NewConversationEngine(ctx, personalityID, userID, p.manager, p.assembler, p.generator)
	}
	return entry.engine
}

// Reset clears the conversation history for the pair. Unknown pairs are
// a no-op, so reset is safe to call before the first question.
func (p *SessionPool) Reset(personalityID, userID string) {
	if userID == "" {
		userID = DefaultUserID
	}

	p.mu.Lock()
	entry, ok := p.sessions[sessionKey{personalityID, userID}]
	p.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.engine != nil {
		entry.engine.Reset()
	}
}

// Len reports how many sessions exist, for health reporting.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
