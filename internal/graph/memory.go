package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/aclarai/internal/model"
)

// Versioned pairs a stored node with its write counter
type Versioned[T any] struct {
	Node    T
	Version int
}

// MemoryStore is an in-process Store for tests and dry runs
type MemoryStore struct {
	mu        sync.RWMutex
	claims    map[string]Versioned[model.ClaimInput]
	sentences map[string]Versioned[model.SentenceInput]
	blocks    map[string]model.Block
	concepts  map[string]model.ConceptInput
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:    make(map[string]Versioned[model.ClaimInput]),
		sentences: make(map[string]Versioned[model.SentenceInput]),
		blocks:    make(map[string]model.Block),
		concepts:  make(map[string]model.ConceptInput),
	}
}

func (s *MemoryStore) UpsertClaims(ctx context.Context, claims []model.ClaimInput) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range claims {
		s.claims[c.ID] = Versioned[model.ClaimInput]{Node: c, Version: s.claims[c.ID].Version + 1}
	}
	return len(claims), nil
}

func (s *MemoryStore) UpsertSentences(ctx context.Context, sentences []model.SentenceInput) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range sentences {
		s.sentences[c.ID] = Versioned[model.SentenceInput]{Node: c, Version: s.sentences[c.ID].Version + 1}
	}
	return len(sentences), nil
}

func (s *MemoryStore) GetBlock(ctx context.Context, id string) (*model.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok {
		return nil, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	return &b, nil
}

func (s *MemoryStore) CreateBlock(ctx context.Context, b model.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[b.ID]; ok {
		return fmt.Errorf("create block %s: %w", b.ID, ErrVersionConflict)
	}
	s.blocks[b.ID] = b
	return nil
}

func (s *MemoryStore) UpdateBlock(ctx context.Context, b model.Block, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.blocks[b.ID]
	if !ok {
		return fmt.Errorf("update block %s: %w", b.ID, ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("update block %s at version %d, stored %d: %w", b.ID, expectedVersion, cur.Version, ErrVersionConflict)
	}
	s.blocks[b.ID] = b
	return nil
}

func (s *MemoryStore) CreateConcepts(ctx context.Context, concepts []model.ConceptInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range concepts {
		s.concepts[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// Claims returns stored claims sorted by id
func (s *MemoryStore) Claims() []Versioned[model.ClaimInput] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.claims, func(v Versioned[model.ClaimInput]) string { return v.Node.ID })
}

// Sentences returns stored sentences sorted by id
func (s *MemoryStore) Sentences() []Versioned[model.SentenceInput] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.sentences, func(v Versioned[model.SentenceInput]) string { return v.Node.ID })
}

// Concepts returns stored concepts sorted by id
func (s *MemoryStore) Concepts() []model.ConceptInput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.concepts, func(c model.ConceptInput) string { return c.ID })
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
