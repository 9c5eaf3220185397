package model

import "time"

// CandidateStatus tracks the single pending -> merged|promoted transition
type CandidateStatus string

const (
	StatusPending  CandidateStatus = "pending"
	StatusMerged   CandidateStatus = "merged"
	StatusPromoted CandidateStatus = "promoted"
)

// Valid reports whether s is a known status
func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMerged, StatusPromoted:
		return true
	}
	return false
}

// SourceNodeType is the kind of graph node a noun phrase was extracted from
type SourceNodeType string

const (
	SourceClaim   SourceNodeType = "claim"
	SourceSummary SourceNodeType = "summary"
)

// Valid reports whether t is claim or summary
func (t SourceNodeType) Valid() bool {
	return t == SourceClaim || t == SourceSummary
}

// NounPhraseCandidate is a normalized phrase awaiting a merge/promote decision
type NounPhraseCandidate struct {
	ID             string          `json:"id" db:"id"`
	Text           string          `json:"text" db:"text"`
	NormalizedText string          `json:"normalized_text" db:"normalized_text"`
	SourceNodeID   string          `json:"source_node_id" db:"source_node_id"`
	SourceNodeType SourceNodeType  `json:"source_node_type" db:"source_node_type"`
	AclaraiID      string          `json:"aclarai_id" db:"aclarai_id"`
	Embedding      []float32       `json:"embedding,omitempty" db:"-"`
	Status         CandidateStatus `json:"status" db:"status"`
	ConceptID      string          `json:"concept_id,omitempty" db:"concept_id"` // Set when promoted, or the concept a merge points at
	Timestamp      time.Time       `json:"timestamp" db:"created_at"`
}

// Concept is a promoted canonical entity
type Concept struct {
	ID                string         `json:"id"`
	Text              string         `json:"text"`
	SourceCandidateID string         `json:"source_candidate_id"`
	SourceNodeID      string         `json:"source_node_id"`
	SourceNodeType    SourceNodeType `json:"source_node_type"`
	AclaraiID         string         `json:"aclarai_id"`
	Version           int            `json:"version"`
	Timestamp         time.Time      `json:"timestamp"`
}

// SimilarityMatch is one nearest neighbor returned by a detector query
type SimilarityMatch struct {
	CandidateID        string            `json:"candidate_id"`
	MatchedCandidateID string            `json:"matched_candidate_id,omitempty"`
	MatchedConceptID   string            `json:"matched_concept_id,omitempty"`
	SimilarityScore    float64           `json:"similarity_score"`
	MatchedText        string            `json:"matched_text"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// DetectionAction is the outcome of the merge/promote decision
type DetectionAction string

const (
	ActionMerged   DetectionAction = "merged"
	ActionPromoted DetectionAction = "promoted"
)

// DetectionResult records the decision for one candidate
type DetectionResult struct {
	CandidateID string            `json:"candidate_id"`
	Action      DetectionAction   `json:"action"`
	Confidence  float64           `json:"confidence"`
	Reason      string            `json:"reason"`
	BestMatch   *SimilarityMatch  `json:"best_match,omitempty"`
	Matches     []SimilarityMatch `json:"matches,omitempty"`
}
