// Package graph persists Claim, Sentence, Block and Concept nodes.
package graph

import (
	"context"
	"errors"

	"github.com/ppiankov/aclarai/internal/model"
)

var (
	// ErrNotFound is returned when a block does not exist
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a conditional write lost to a concurrent one
	ErrVersionConflict = errors.New("version conflict")
)

// ClaimWriter stores pipeline output. Writing an existing id bumps its version.
type ClaimWriter interface {
	UpsertClaims(ctx context.Context, claims []model.ClaimInput) (int, error)
	UpsertSentences(ctx context.Context, sentences []model.SentenceInput) (int, error)
}

// BlockStore holds the durable copy of vault blocks
type BlockStore interface {
	GetBlock(ctx context.Context, id string) (*model.Block, error)
	CreateBlock(ctx context.Context, b model.Block) error
	// UpdateBlock writes b only if the stored version still equals expectedVersion
	UpdateBlock(ctx context.Context, b model.Block, expectedVersion int) error
}

// ConceptWriter creates Concept nodes linked to their source candidates
type ConceptWriter interface {
	CreateConcepts(ctx context.Context, concepts []model.ConceptInput) error
}

// Store is the full graph backend
type Store interface {
	ClaimWriter
	BlockStore
	ConceptWriter
	Close(ctx context.Context) error
}
