package concepts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/aclarai/internal/graph"
	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/retry"
)

// Extractor produces candidates for one Claim or Summary block
type Extractor interface {
	Extract(ctx context.Context, block model.BlockInput, nodeType model.SourceNodeType) ([]model.NounPhraseCandidate, error)
}

// Action is the per-candidate record of a processing run
type Action struct {
	CandidateID    string                `json:"candidate_id"`
	Text           string                `json:"text"`
	NormalizedText string                `json:"normalized_text"`
	Action         model.DetectionAction `json:"action"`
	Confidence     float64               `json:"confidence"`
	Reason         string                `json:"reason"`
	ConceptID      string                `json:"concept_id,omitempty"`
	MatchedText    string                `json:"matched_text,omitempty"`
}

// Result is the outcome of processing one block
type Result struct {
	BlockID             string   `json:"block_id"`
	BlockType           string   `json:"block_type"`
	CandidatesExtracted int      `json:"candidates_extracted"`
	CandidatesStored    int      `json:"candidates_stored"`
	AlreadyDecided      int      `json:"already_decided"`
	MergedCount         int      `json:"merged_count"`
	PromotedCount       int      `json:"promoted_count"`
	ConceptsCreated     int      `json:"concepts_created"`
	FilesWritten        int      `json:"files_written"`
	Actions             []Action `json:"actions"`
	Errors              []string `json:"errors,omitempty"`
	Success             bool     `json:"success"`
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Processor runs extract, store, detect, status update, concept creation
// and file write-back for one block at a time
type Processor struct {
	extractor Extractor
	store     CandidateStore
	detector  *Detector
	concepts  graph.ConceptWriter
	files     *FileWriter
	policy    retry.Policy
	logger    *logging.Logger
	now       func() time.Time
}

// NewProcessor wires a processor. files may be nil to skip write-back.
func NewProcessor(extractor Extractor, store CandidateStore, detector *Detector, concepts graph.ConceptWriter,
	files *FileWriter, policy retry.Policy, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Processor{
		extractor: extractor,
		store:     store,
		detector:  detector,
		concepts:  concepts,
		files:     files,
		policy:    policy,
		logger:    logger.With("component", "concept-processor"),
		now:       time.Now,
	}
}

// NewConceptID returns a fresh concept id
func NewConceptID() string {
	return "concept_" + uuid.NewString()
}

// Process handles one block. Candidates already merged or promoted by an
// earlier run are reported with their stored concept and not decided again.
// Status update failures are logged and skipped. If concept creation fails no
// files are written and status updates already applied stay in place.
func (p *Processor) Process(ctx context.Context, block model.BlockInput, nodeType model.SourceNodeType) *Result {
	res := &Result{BlockID: block.ID, BlockType: string(nodeType), Actions: []Action{}}

	cands, err := p.extractor.Extract(ctx, block, nodeType)
	if err != nil {
		res.fail("extract: %v", err)
		return res
	}
	res.CandidatesExtracted = len(cands)
	if len(cands) == 0 {
		res.Success = true
		return res
	}

	stored, err := retry.Do(ctx, p.policy, "store candidates", func(ctx context.Context) (int, error) {
		return p.store.Store(ctx, cands)
	})
	if err != nil {
		res.fail("store candidates: %v", err)
		return res
	}
	res.CandidatesStored = stored

	pending, prior, err := p.splitDecided(ctx, cands)
	if err != nil {
		res.fail("%v", err)
		return res
	}
	detections := p.detector.DetectBatch(ctx, pending)

	// Promoted candidates get their ids first so merges onto a peer in this batch can point at them
	conceptIDs := make(map[string]string)
	for i, d := range detections {
		if d.Action == model.ActionPromoted {
			conceptIDs[pending[i].ID] = NewConceptID()
		}
	}

	ts := p.now().UTC()
	var newConcepts []model.Concept
	next := 0
	for _, c := range cands {
		if prev, ok := prior[c.ID]; ok {
			res.AlreadyDecided++
			res.Actions = append(res.Actions, decidedAction(c, prev))
			continue
		}
		d := detections[next]
		next++
		act := Action{
			CandidateID:    c.ID,
			Text:           c.Text,
			NormalizedText: c.NormalizedText,
			Action:         d.Action,
			Confidence:     d.Confidence,
			Reason:         d.Reason,
		}

		status := model.StatusPromoted
		if d.Action == model.ActionMerged {
			status = model.StatusMerged
			res.MergedCount++
			if d.BestMatch != nil {
				act.MatchedText = d.BestMatch.MatchedText
				act.ConceptID = d.BestMatch.MatchedConceptID
				if peer, ok := conceptIDs[d.BestMatch.MatchedCandidateID]; ok {
					act.ConceptID = peer
				}
			}
		} else {
			res.PromotedCount++
			act.ConceptID = conceptIDs[c.ID]
			newConcepts = append(newConcepts, model.Concept{
				ID:                act.ConceptID,
				Text:              c.NormalizedText,
				SourceCandidateID: c.ID,
				SourceNodeID:      c.SourceNodeID,
				SourceNodeType:    c.SourceNodeType,
				AclaraiID:         c.AclaraiID,
				Version:           1,
				Timestamp:         ts,
			})
		}
		res.Actions = append(res.Actions, act)

		err := retry.DoErr(ctx, p.policy, "update candidate status", func(ctx context.Context) error {
			return p.store.UpdateStatus(ctx, c.ID, status, act.ConceptID)
		})
		if err != nil {
			p.logger.Warn("candidate status update failed", "candidate_id", c.ID, "status", string(status), "error", err.Error())
			res.fail("update status %s: %v", c.ID, err)
		}
		if err := p.detector.AssignConcept(ctx, c, status, act.ConceptID); err != nil {
			p.logger.Warn("index update failed", "candidate_id", c.ID, "error", err.Error())
		}
	}

	if len(newConcepts) > 0 {
		inputs := make([]model.ConceptInput, len(newConcepts))
		for i, c := range newConcepts {
			inputs[i] = model.ConceptInput{
				ID:                c.ID,
				Text:              c.Text,
				SourceCandidateID: c.SourceCandidateID,
				SourceNodeID:      c.SourceNodeID,
				SourceNodeType:    string(c.SourceNodeType),
				AclaraiID:         c.AclaraiID,
				Version:           c.Version,
				Timestamp:         c.Timestamp,
			}
		}
		err := retry.DoErr(ctx, p.policy, "create concepts", func(ctx context.Context) error {
			return p.concepts.CreateConcepts(ctx, inputs)
		})
		if err != nil {
			p.logger.Error("concept creation failed, skipping files", "block_id", block.ID, "concepts", len(inputs), "error", err.Error())
			res.fail("create concepts: %v", err)
			return res
		}
		res.ConceptsCreated = len(inputs)
		p.writeFiles(newConcepts, res)
	}

	res.Success = true
	p.logger.Info("processed block",
		"block_id", block.ID, "block_type", string(nodeType),
		"extracted", res.CandidatesExtracted, "merged", res.MergedCount,
		"promoted", res.PromotedCount, "already_decided", res.AlreadyDecided,
		"files", res.FilesWritten)
	return res
}

// splitDecided separates pending candidates from those an earlier run already
// merged or promoted, keyed by candidate id
func (p *Processor) splitDecided(ctx context.Context, cands []model.NounPhraseCandidate) ([]model.NounPhraseCandidate, map[string]*model.NounPhraseCandidate, error) {
	pending := make([]model.NounPhraseCandidate, 0, len(cands))
	prior := make(map[string]*model.NounPhraseCandidate)
	for _, c := range cands {
		got, err := retry.Do(ctx, p.policy, "get candidate", func(ctx context.Context) (*model.NounPhraseCandidate, error) {
			return p.store.Get(ctx, c.ID)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("get candidate %s: %w", c.ID, err)
		}
		if got.Status != model.StatusPending {
			prior[c.ID] = got
			continue
		}
		pending = append(pending, c)
	}
	return pending, prior, nil
}

func decidedAction(c model.NounPhraseCandidate, prev *model.NounPhraseCandidate) Action {
	action := model.ActionPromoted
	if prev.Status == model.StatusMerged {
		action = model.ActionMerged
	}
	return Action{
		CandidateID:    c.ID,
		Text:           c.Text,
		NormalizedText: c.NormalizedText,
		Action:         action,
		Confidence:     1.0,
		Reason:         fmt.Sprintf("already %s", prev.Status),
		ConceptID:      prev.ConceptID,
	}
}

func (p *Processor) writeFiles(concepts []model.Concept, res *Result) {
	if p.files == nil {
		return
	}
	for _, c := range concepts {
		path, err := p.files.Write(c)
		if err != nil {
			p.logger.Warn("concept file write failed", "concept_id", c.ID, "error", err.Error())
			res.fail("write %s: %v", c.ID, err)
			continue
		}
		res.FilesWritten++
		p.logger.Debug("wrote concept file", "concept_id", c.ID, "path", path)
	}
}
