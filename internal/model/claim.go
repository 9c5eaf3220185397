package model

import (
	"strings"
	"time"
)

// SentenceChunk is one sentence of a source block, the unit the Claimify pipeline works on
type SentenceChunk struct {
	Text          string `json:"text"`
	SourceBlockID string `json:"source_block_id"`
	ChunkID       string `json:"chunk_id"`
	SentenceIndex int    `json:"sentence_index"` // Position within the source block (0-based)
}

// ClaimifyContext is the context window around a single chunk
type ClaimifyContext struct {
	Current   SentenceChunk   `json:"current"`
	Preceding []SentenceChunk `json:"preceding"` // Chronological, at most p chunks
	Following []SentenceChunk `json:"following"` // Chronological, at most f chunks
}

// PrecedingText joins the preceding chunks into a single string
func (c ClaimifyContext) PrecedingText() string {
	return joinChunks(c.Preceding)
}

// FollowingText joins the following chunks into a single string
func (c ClaimifyContext) FollowingText() string {
	return joinChunks(c.Following)
}

func joinChunks(chunks []SentenceChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		parts = append(parts, ch.Text)
	}
	return strings.Join(parts, " ")
}

// ClaimCandidate is one atomic claim proposed by the decomposition stage
type ClaimCandidate struct {
	Text            string  `json:"text"`
	IsAtomic        bool    `json:"is_atomic"`
	IsSelfContained bool    `json:"is_self_contained"`
	IsVerifiable    bool    `json:"is_verifiable"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning,omitempty"`
}

// PassesCriteria reports whether the candidate becomes a Claim node (otherwise a Sentence node)
func (c ClaimCandidate) PassesCriteria() bool {
	return c.IsAtomic && c.IsSelfContained && c.IsVerifiable
}

// SelectionResult is the outcome of the selection stage
type SelectionResult struct {
	Chunk          SentenceChunk `json:"chunk"`
	IsSelected     bool          `json:"is_selected"`
	Confidence     float64       `json:"confidence"`
	Reasoning      string        `json:"reasoning,omitempty"`
	RejectedBy     string        `json:"rejected_by,omitempty"` // RejectedByModel or RejectedByThreshold
	ProcessingTime time.Duration `json:"processing_time"`
}

// Rejection sources recorded on a SelectionResult
const (
	RejectedByModel     = "model rejected"
	RejectedByThreshold = "confidence below threshold"
)

// RejectionReason describes why an unselected chunk was rejected
func (s *SelectionResult) RejectionReason() string {
	if s.IsSelected {
		return ""
	}
	if s.Reasoning == "" {
		return s.RejectedBy
	}
	return s.RejectedBy + ": " + s.Reasoning
}

// DisambiguationResult is the outcome of the disambiguation stage
type DisambiguationResult struct {
	OriginalText      string        `json:"original_text"`
	DisambiguatedText string        `json:"disambiguated_text"`
	Changes           []string      `json:"changes,omitempty"`
	Confidence        float64       `json:"confidence"`
	Applied           bool          `json:"applied"` // False when the rewrite was discarded for low confidence
	ProcessingTime    time.Duration `json:"processing_time"`
}

// DecompositionResult is the outcome of the decomposition stage
type DecompositionResult struct {
	InputText       string           `json:"input_text"`
	ClaimCandidates []ClaimCandidate `json:"claim_candidates"` // Only candidates at or above the threshold
	Dropped         int              `json:"dropped"`          // Candidates discarded for low confidence
	ProcessingTime  time.Duration    `json:"processing_time"`
}

// ValidClaims returns the candidates that pass all criteria
func (d *DecompositionResult) ValidClaims() []ClaimCandidate {
	var out []ClaimCandidate
	for _, c := range d.ClaimCandidates {
		if c.PassesCriteria() {
			out = append(out, c)
		}
	}
	return out
}

// SentenceNodes returns the kept candidates that fail at least one criterion
func (d *DecompositionResult) SentenceNodes() []ClaimCandidate {
	var out []ClaimCandidate
	for _, c := range d.ClaimCandidates {
		if !c.PassesCriteria() {
			out = append(out, c)
		}
	}
	return out
}

// Stage names the position of a chunk in the Claimify state machine
type Stage string

const (
	StageUnprocessed   Stage = "UNPROCESSED"
	StageSelected      Stage = "SELECTED"
	StageDisambiguated Stage = "DISAMBIGUATED"
	StageDecomposed    Stage = "DECOMPOSED"
	StageRejected      Stage = "REJECTED"
)

// ClaimifyResult aggregates everything the pipeline produced for one chunk.
// Disambiguation is set only when selection selected the chunk, and
// Decomposition only when disambiguation ran.
type ClaimifyResult struct {
	Chunk               SentenceChunk         `json:"chunk"`
	Context             ClaimifyContext       `json:"context"`
	Selection           *SelectionResult      `json:"selection,omitempty"`
	Disambiguation      *DisambiguationResult `json:"disambiguation,omitempty"`
	Decomposition       *DecompositionResult  `json:"decomposition,omitempty"`
	TotalProcessingTime time.Duration         `json:"total_processing_time"`
	Errors              []string              `json:"errors,omitempty"`
}

// State derives the state machine position from the stage results
func (r *ClaimifyResult) State() Stage {
	switch {
	case r.Selection == nil:
		return StageUnprocessed
	case !r.Selection.IsSelected:
		return StageRejected
	case r.Disambiguation == nil:
		return StageSelected
	case r.Decomposition == nil:
		return StageDisambiguated
	default:
		return StageDecomposed
	}
}

// WasProcessed reports whether the chunk went through all three stages
func (r *ClaimifyResult) WasProcessed() bool {
	return r.State() == StageDecomposed
}

// HasErrors reports whether any stage recorded a failure
func (r *ClaimifyResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// FinalClaims returns the candidates that become Claim nodes
func (r *ClaimifyResult) FinalClaims() []ClaimCandidate {
	if r.Decomposition == nil {
		return nil
	}
	return r.Decomposition.ValidClaims()
}

// FinalSentences returns the candidates that become Sentence nodes
func (r *ClaimifyResult) FinalSentences() []ClaimCandidate {
	if r.Decomposition == nil {
		return nil
	}
	return r.Decomposition.SentenceNodes()
}
