package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/avatar/internal/index"
	"github.com/civiclens/avatar/internal/llm"
	"github.com/civiclens/avatar/internal/personality"
	"github.com/civiclens/avatar/internal/prompt"
	"github.com/civiclens/avatar/internal/storage/sqlite"
	"github.com/civiclens/avatar/pkg/types"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%32]++
	}
	return vec, nil
}

func (fakeEmbedder) GetModel() string { return "fake" }

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) GetModel() string { return "fake" }

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func newTestAssembler(t *testing.T) *prompt.Assembler {
	t.Helper()
	return prompt.NewAssembler(personality.NewRegistry(), nil)
}

// newTestManager builds an index manager over a temp document tree with
// one document for the sustainability personality.
func newTestManager(t *testing.T) *index.Manager {
	t.Helper()
	docRoot := t.TempDir()
	nsDir := filepath.Join(docRoot, "sustainability")
	require.NoError(t, os.MkdirAll(nsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nsDir, "energy.txt"),
		[]byte("Solar panels convert sunlight into electricity for municipal buildings."), 0o644))
	return index.NewManager(sqlite.NewOpener(t.TempDir()), fakeEmbedder{}, docRoot)
}

// brokenManager returns a manager whose opener root is a regular file,
// so every open and build fails.
func brokenManager(t *testing.T) *index.Manager {
	t.Helper()
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o644))
	return index.NewManager(sqlite.NewOpener(notADir), fakeEmbedder{}, t.TempDir())
}

func TestEngineAskReturnsSourcesAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Solar panels power municipal buildings."}
	e := NewConversationEngine(ctx, "sustainability", "user-1", newTestManager(t), newTestAssembler(t), gen)
	require.Equal(t, StateReady, e.State())

	answer, err := e.Ask(ctx, "solar panels sunlight electricity")
	require.NoError(t, err)
	assert.Equal(t, "Solar panels power municipal buildings.", answer.Text)
	assert.Equal(t, []string{"energy.txt"}, answer.Sources)
	assert.Equal(t, "sustainability", answer.PersonalityID)

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, "solar panels sunlight electricity", history[0].Question)
	assert.False(t, history[0].AskedAt.IsZero())

	// The retrieved document text made it into the prompt.
	assert.Contains(t, gen.lastPrompt(), "Solar panels convert sunlight")
}

func TestEngineHistoryFlowsIntoNextPrompt(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "first answer"}
	e := NewConversationEngine(ctx, "sustainability", "user-1", newTestManager(t), newTestAssembler(t), gen)

	_, err := e.Ask(ctx, "first question")
	require.NoError(t, err)

	gen.mu.Lock()
	gen.reply = "second answer"
	gen.mu.Unlock()

	_, err = e.Ask(ctx, "second question")
	require.NoError(t, err)

	p := gen.lastPrompt()
	assert.Contains(t, p, "<conversation_history>")
	assert.Contains(t, p, "Q: first question")
	assert.Contains(t, p, "A: first answer")
}

func TestEngineFallbackWhenIndexUnavailable(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "general knowledge answer"}
	e := NewConversationEngine(ctx, "sustainability", "user-1", brokenManager(t), newTestAssembler(t), gen)
	require.Equal(t, StateFallback, e.State())

	answer, err := e.Ask(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, "general knowledge answer", answer.Text)
	assert.Equal(t, []string{FallbackSource}, answer.Sources)
	assert.Len(t, e.History(), 1)
}

func TestEngineOverloadPropagatesAndHistoryUnchanged(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: &llm.StatusError{Provider: "openai", StatusCode: 429, Body: "rate limited"}}
	e := NewConversationEngine(ctx, "sustainability", "user-1", newTestManager(t), newTestAssembler(t), gen)

	_, err := e.Ask(ctx, "a question")
	require.Error(t, err)
	assert.True(t, llm.IsOverloaded(err))
	assert.Empty(t, e.History())
}

func TestEngineAbsorbsOtherGenerationErrors(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: errors.New("connection refused")}
	e := NewConversationEngine(ctx, "sustainability", "user-1", newTestManager(t), newTestAssembler(t), gen)

	answer, err := e.Ask(ctx, "a question")
	require.NoError(t, err)
	assert.Equal(t, apologyAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, e.History())
}

func TestEngineResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "ok"}
	e := NewConversationEngine(ctx, "sustainability", "user-1", newTestManager(t), newTestAssembler(t), gen)

	_, err := e.Ask(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, e.History(), 1)

	e.Reset()
	assert.Empty(t, e.History())
	e.Reset()
	assert.Empty(t, e.History())

	_, err = e.Ask(ctx, "q2")
	require.NoError(t, err)
	assert.Len(t, e.History(), 1)
}

func TestDedupeSourcesPreservesFirstSeenOrder(t *testing.T) {
	in := []types.Chunk{
		{ID: "1", Source: "b.pdf"},
		{ID: "2", Source: "a.pdf"},
		{ID: "3", Source: "b.pdf"},
		{ID: "4", Source: "c.pdf"},
		{ID: "5", Source: "a.pdf"},
		{ID: "6", Source: ""},
	}
	assert.Equal(t, []string{"b.pdf", "a.pdf", "c.pdf"}, dedupeSources(in))
}

func TestSessionPoolReturnsSameEngineConcurrently(t *testing.T) {
	ctx := context.Background()
	pool := NewSessionPool(newTestManager(t), newTestAssembler(t), &fakeGenerator{reply: "ok"})

	const goroutines = 16
	engines := make([]*ConversationEngine, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i] = pool.GetOrCreate(ctx, "sustainability", "user-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, engines[0], engines[i])
	}
	assert.Equal(t, 1, pool.Len())
}

func TestSessionPoolSeparatesUsersAndPersonalities(t *testing.T) {
	ctx := context.Background()
	pool := NewSessionPool(newTestManager(t), newTestAssembler(t), &fakeGenerator{reply: "ok"})

	a := pool.GetOrCreate(ctx, "sustainability", "alice")
	b := pool.GetOrCreate(ctx, "sustainability", "bob")
	c := pool.GetOrCreate(ctx, "equity", "alice")

	assert.NotSame(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 3, pool.Len())
}

func TestSessionPoolEmptyUserIsDefault(t *testing.T) {
	ctx := context.Background()
	pool := NewSessionPool(newTestManager(t), newTestAssembler(t), &fakeGenerator{reply: "ok"})

	anon := pool.GetOrCreate(ctx, "sustainability", "")
	named := pool.GetOrCreate(ctx, "sustainability", DefaultUserID)
	assert.Same(t, anon, named)
}

func TestSessionPoolResetUnknownPairIsNoOp(t *testing.T) {
	pool := NewSessionPool(newTestManager(t), newTestAssembler(t), &fakeGenerator{reply: "ok"})
	pool.Reset("sustainability", "nobody") // must not panic or create a session
	assert.Equal(t, 0, pool.Len())
}

func TestSessionPoolResetClearsHistory(t *testing.T) {
	ctx := context.Background()
	pool := NewSessionPool(newTestManager(t), newTestAssembler(t), &fakeGenerator{reply: "ok"})

	e := pool.GetOrCreate(ctx, "sustainability", "alice")
	_, err := e.Ask(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, e.History(), 1)

	pool.Reset("sustainability", "alice")
	assert.Empty(t, e.History())
}
