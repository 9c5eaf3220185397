// Package concepts deduplicates noun phrase candidates into canonical concepts.
package concepts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/aclarai/internal/model"
)

var (
	// ErrNotFound is returned for unknown candidate ids
	ErrNotFound = errors.New("candidate not found")

	// ErrInvalidTransition is returned when a candidate is not pending or the target status is not final
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CandidateStore is the append-only history of noun phrase candidates
type CandidateStore interface {
	// Store inserts new candidates and returns how many were new. Existing ids are left untouched.
	Store(ctx context.Context, candidates []model.NounPhraseCandidate) (int, error)
	Get(ctx context.Context, id string) (*model.NounPhraseCandidate, error)
	// UpdateStatus moves a pending candidate to merged or promoted, exactly once
	UpdateStatus(ctx context.Context, id string, status model.CandidateStatus, conceptID string) error
	// ListIndexable returns pending and promoted candidates that have an embedding, oldest first
	ListIndexable(ctx context.Context) ([]model.NounPhraseCandidate, error)
	Close() error
}

func checkTarget(id string, status model.CandidateStatus) error {
	if status != model.StatusMerged && status != model.StatusPromoted {
		return fmt.Errorf("candidate %s to %q: %w", id, status, ErrInvalidTransition)
	}
	return nil
}
