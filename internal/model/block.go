package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Block is a versioned unit of source Markdown, the unit of sync between files and the graph
type Block struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	ContentHash       string    `json:"content_hash"`
	SourceFile        string    `json:"source_file"`
	Version           int       `json:"version"`
	NeedsReprocessing bool      `json:"needs_reprocessing"`
	LastUpdated       time.Time `json:"last_updated"`
}

// NormalizeWhitespace collapses all whitespace runs into single spaces and trims the ends
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HashContent returns the SHA-256 hex digest of the whitespace-normalized text
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(NormalizeWhitespace(text)))
	return hex.EncodeToString(sum[:])
}

// ClaimInput is a Claim node write produced from a passing claim candidate
type ClaimInput struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	BlockID         string   `json:"block_id"`
	ChunkID         string   `json:"chunk_id"`
	Confidence      float64  `json:"confidence"`
	Verifiable      bool     `json:"verifiable"`
	SelfContained   bool     `json:"self_contained"`
	ContextComplete bool     `json:"context_complete"`
	EntailedScore   *float64 `json:"entailed_score"`   // Filled by later evaluation, nil at creation
	CoverageScore   *float64 `json:"coverage_score"`   // Filled by later evaluation, nil at creation
	DecontextScore  *float64 `json:"decontext_score"`  // Filled by later evaluation, nil at creation
}

// SentenceInput is a Sentence node write for text that did not qualify as a Claim
type SentenceInput struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	BlockID       string `json:"block_id"`
	ChunkID       string `json:"chunk_id"`
	Ambiguous     bool   `json:"ambiguous"`
	Verifiable    bool   `json:"verifiable"`
	FailedDecomp  bool   `json:"failed_decomposition"` // Came from a kept candidate that failed criteria
	RejectionNote string `json:"rejection_reason,omitempty"`
}

// ConceptInput is a Concept node write for a promoted candidate
type ConceptInput struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	SourceCandidateID string    `json:"source_candidate_id"`
	SourceNodeID      string    `json:"source_node_id"`
	SourceNodeType    string    `json:"source_node_type"`
	AclaraiID         string    `json:"aclarai_id"`
	Version           int       `json:"version"`
	Timestamp         time.Time `json:"timestamp"`
}
