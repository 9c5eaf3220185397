package concepts

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/aclarai/internal/model"
)

// MemoryStore keeps candidates in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*model.NounPhraseCandidate
	order []string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*model.NounPhraseCandidate)}
}

func (s *MemoryStore) Store(ctx context.Context, candidates []model.NounPhraseCandidate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range candidates {
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		cp := c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		if cp.Status == "" {
			cp.Status = model.StatusPending
		}
		s.byID[c.ID] = &cp
		s.order = append(s.order, c.ID)
		n++
	}
	return n, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.NounPhraseCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status model.CandidateStatus, conceptID string) error {
	if err := checkTarget(id, status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if c.Status != model.StatusPending {
		return fmt.Errorf("candidate %s already %s: %w", id, c.Status, ErrInvalidTransition)
	}
	c.Status = status
	c.ConceptID = conceptID
	return nil
}

func (s *MemoryStore) ListIndexable(ctx context.Context) ([]model.NounPhraseCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.NounPhraseCandidate
	for _, id := range s.order {
		c := s.byID[id]
		if c.Embedding == nil || c.Status == model.StatusMerged {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
