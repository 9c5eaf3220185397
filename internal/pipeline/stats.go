package pipeline

import (
	"time"

	"github.com/ppiankov/aclarai/internal/model"
)

// Stats summarizes one pipeline run
type Stats struct {
	Total             int           `json:"total"`
	Selected          int           `json:"selected"`
	Rejected          int           `json:"rejected"`
	Failed            int           `json:"failed"`
	Decomposed        int           `json:"decomposed"`
	Claims            int           `json:"claims"`
	Sentences         int           `json:"sentences"`
	DroppedCandidates int           `json:"dropped_candidates"`
	MeanTime          time.Duration `json:"mean_processing_time"`
	FailedIndices     []int         `json:"failed_indices,omitempty"` // Positions in the input sequence
}

// Summarize counts outcomes. Indices refer to positions in results.
func Summarize(results []*model.ClaimifyResult) Stats {
	s := Stats{Total: len(results)}
	var total time.Duration
	for i, r := range results {
		if r == nil {
			continue
		}
		total += r.TotalProcessingTime
		if r.HasErrors() {
			s.Failed++
			s.FailedIndices = append(s.FailedIndices, i)
		}
		if r.Selection != nil {
			if r.Selection.IsSelected {
				s.Selected++
			} else {
				s.Rejected++
			}
		}
		if r.Decomposition != nil {
			s.Decomposed++
			s.DroppedCandidates += r.Decomposition.Dropped
		}
		s.Claims += len(r.FinalClaims())
		s.Sentences += len(r.FinalSentences())
	}
	if s.Total > 0 {
		s.MeanTime = total / time.Duration(s.Total)
	}
	return s
}
