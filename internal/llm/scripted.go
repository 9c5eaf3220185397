package llm

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
)

// ErrNoScript is returned when no rule matches a prompt
var ErrNoScript = errors.New("no scripted response")

// Rule answers prompts containing every string in Contains
type Rule struct {
	Contains []string
	Response string
	Err      error
}

// ScriptedProvider is a deterministic Provider for tests and offline runs.
// The first rule whose strings all occur in system+prompt answers.
type ScriptedProvider struct {
	name  string
	mu    sync.Mutex
	rules []Rule
	calls []CompletionRequest
}

// NewScriptedProvider creates an empty scripted provider
func NewScriptedProvider(name string) *ScriptedProvider {
	if name == "" {
		name = "scripted"
	}
	return &ScriptedProvider{name: name}
}

// On adds a rule returning response
func (p *ScriptedProvider) On(response string, contains ...string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, Rule{Contains: contains, Response: response})
	return p
}

// OnError adds a rule returning err
func (p *ScriptedProvider) OnError(err error, contains ...string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, Rule{Contains: contains, Err: err})
	return p
}

func (p *ScriptedProvider) Name() string { return p.name }

func (p *ScriptedProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *ScriptedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, req)
	rules := p.rules
	p.mu.Unlock()

	haystack := req.System + "\n" + req.Prompt
	for _, r := range rules {
		if matchesAll(haystack, r.Contains) {
			if r.Err != nil {
				return nil, r.Err
			}
			return &CompletionResponse{Text: r.Response, Model: pick(req.Model, p.name)}, nil
		}
	}
	return nil, fmt.Errorf("%w for prompt %.60q", ErrNoScript, req.Prompt)
}

// Calls returns a copy of every request received so far
func (p *ScriptedProvider) Calls() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CompletionRequest(nil), p.calls...)
}

func matchesAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// HashEmbedder produces deterministic pseudo-random unit-ish vectors seeded
// from the text. Fixed vectors can be pinned per text with Set.
type HashEmbedder struct {
	Dim int

	mu     sync.Mutex
	pinned map[string][]float32
	calls  int
	err    error
}

// NewHashEmbedder creates an embedder of the given dimension
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim, pinned: map[string][]float32{}}
}

// Set pins the vector returned for text
func (e *HashEmbedder) Set(text string, v []float32) *HashEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = v
	return e
}

// FailWith makes every later Embed call return err
func (e *HashEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many Embed calls were made
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) ModelName() string { return fmt.Sprintf("hash-%d", e.Dim) }

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.pinned[t]; ok {
			out[i] = v
			continue
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(t))
		r := rand.New(rand.NewSource(int64(h.Sum64())))
		v := make([]float32, e.Dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		out[i] = v
	}
	return out, nil
}
