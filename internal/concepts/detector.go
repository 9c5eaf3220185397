package concepts

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/aclarai/internal/ann"
	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
)

// entry is the payload of one index node
type entry struct {
	CandidateID    string
	Text           string
	NormalizedText string
	Status         model.CandidateStatus
	ConceptID      string
}

// Detector owns the ANN index over candidate embeddings and applies the
// merge/promote rule. Rebuild takes the write lock; queries and inserts
// take the read lock and rely on the index to serialize its own writers.
type Detector struct {
	mu      sync.RWMutex
	store   CandidateStore
	cfg     model.ConceptsConfig
	annCfg  ann.Config
	index   *ann.Index[entry]
	built   bool
	logger  *logging.Logger
	idsMu   sync.Mutex
	nodeIDs map[string]int // Candidate id to index node id
}

// NewDetector creates a detector over store. The index is built on first use.
func NewDetector(store CandidateStore, cfg model.ConceptsConfig, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.BatchMode == "" {
		cfg.BatchMode = model.BatchSequential
	}
	annCfg := ann.DefaultConfig()
	if cfg.M > 0 {
		annCfg.M = cfg.M
	}
	if cfg.EfConstruction > 0 {
		annCfg.EfConstruction = cfg.EfConstruction
	}
	if cfg.EfSearch > 0 {
		annCfg.EfSearch = cfg.EfSearch
	}
	return &Detector{
		store:   store,
		cfg:     cfg,
		annCfg:  annCfg,
		logger:  logger.With("component", "concept-detector"),
		nodeIDs: make(map[string]int),
	}
}

// Rebuild discards the index and rebuilds it from the store snapshot.
// It returns the number of indexed candidates.
func (d *Detector) Rebuild(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rebuildLocked(ctx)
}

// RebuildJob adapts Rebuild to a scheduled job
func (d *Detector) RebuildJob(ctx context.Context) error {
	_, err := d.Rebuild(ctx)
	return err
}

func (d *Detector) rebuildLocked(ctx context.Context) (int, error) {
	cands, err := d.store.ListIndexable(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	index := ann.New[entry](0, d.annCfg)
	ids := make(map[string]int, len(cands))
	for _, c := range cands {
		id, err := index.Add(c.Embedding, entryOf(c))
		if err != nil {
			d.logger.Warn("skipping candidate during rebuild", "candidate_id", c.ID, "error", err.Error())
			continue
		}
		ids[c.ID] = id
	}

	d.index = index
	d.idsMu.Lock()
	d.nodeIDs = ids
	d.idsMu.Unlock()
	d.built = true
	d.logger.Info("concept index rebuilt", "candidates", index.Len(), "dim", index.Dim())
	return index.Len(), nil
}

func entryOf(c model.NounPhraseCandidate) entry {
	return entry{
		CandidateID:    c.ID,
		Text:           c.Text,
		NormalizedText: c.NormalizedText,
		Status:         c.Status,
		ConceptID:      c.ConceptID,
	}
}

// readIndex takes the read lock, building the index first if needed. The
// caller must call the returned release func.
func (d *Detector) readIndex(ctx context.Context) (func(), error) {
	d.mu.RLock()
	if d.built {
		return d.mu.RUnlock, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	if !d.built {
		if _, err := d.rebuildLocked(ctx); err != nil {
			d.mu.Unlock()
			return nil, err
		}
	}
	d.mu.Unlock()
	return d.readIndex(ctx)
}

// IndexSize returns the number of indexed candidates, 0 before the first build
func (d *Detector) IndexSize() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.index == nil {
		return 0
	}
	return d.index.Len()
}

// FindSimilar returns up to TopK neighbors of c, most similar first. The
// candidate itself, merged candidates and ids in exclude are skipped. A
// candidate without an embedding has no neighbors.
func (d *Detector) FindSimilar(ctx context.Context, c model.NounPhraseCandidate, exclude map[string]bool) ([]model.SimilarityMatch, error) {
	if len(c.Embedding) == 0 {
		return nil, nil
	}
	release, err := d.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return d.search(c, exclude)
}

func (d *Detector) search(c model.NounPhraseCandidate, exclude map[string]bool) ([]model.SimilarityMatch, error) {
	if len(c.Embedding) == 0 {
		return nil, nil
	}
	hits, err := d.index.Search(c.Embedding, d.cfg.TopK, func(_ int, e entry) bool {
		return e.CandidateID != c.ID && e.Status != model.StatusMerged && !exclude[e.CandidateID]
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.ID, err)
	}
	out := make([]model.SimilarityMatch, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.SimilarityMatch{
			CandidateID:        c.ID,
			MatchedCandidateID: h.Payload.CandidateID,
			MatchedConceptID:   h.Payload.ConceptID,
			SimilarityScore:    h.Similarity,
			MatchedText:        h.Payload.Text,
			Metadata: map[string]string{
				"normalized_text": h.Payload.NormalizedText,
				"status":          string(h.Payload.Status),
			},
		})
	}
	return out, nil
}

// DecideAction applies the merge/promote rule: the best match at or above
// threshold merges with confidence min(score, 1); otherwise the candidate is
// promoted with confidence 1 when nothing matched and 1 - best score otherwise.
func DecideAction(candidateID string, matches []model.SimilarityMatch, threshold float64) model.DetectionResult {
	res := model.DetectionResult{CandidateID: candidateID, Matches: matches}

	var best *model.SimilarityMatch
	for i := range matches {
		if best == nil || matches[i].SimilarityScore > best.SimilarityScore {
			best = &matches[i]
		}
	}
	if best == nil {
		res.Action = model.ActionPromoted
		res.Confidence = 1.0
		res.Reason = "no similar candidates found"
		return res
	}

	bm := *best
	res.BestMatch = &bm
	if best.SimilarityScore >= threshold {
		res.Action = model.ActionMerged
		res.Confidence = min(best.SimilarityScore, 1.0)
		res.Reason = fmt.Sprintf("similar to %q (score %.4f >= %.4f)", best.MatchedText, best.SimilarityScore, threshold)
		return res
	}
	res.Action = model.ActionPromoted
	res.Confidence = 1.0 - best.SimilarityScore
	res.Reason = fmt.Sprintf("closest match %q (score %.4f < %.4f)", best.MatchedText, best.SimilarityScore, threshold)
	return res
}

// Detect decides one candidate against the current index
func (d *Detector) Detect(ctx context.Context, c model.NounPhraseCandidate) model.DetectionResult {
	results := d.DetectBatch(ctx, []model.NounPhraseCandidate{c})
	return results[0]
}

// DetectBatch decides every candidate, in order. Candidates of the batch
// never match each other while undecided. In sequential mode a promoted
// candidate enters the index before the next decision, so later duplicates
// merge with it; in independent mode every decision sees the pre-batch index.
// A failure for one candidate promotes it with confidence 0.
func (d *Detector) DetectBatch(ctx context.Context, cands []model.NounPhraseCandidate) []model.DetectionResult {
	out := make([]model.DetectionResult, len(cands))
	release, err := d.readIndex(ctx)
	if err != nil {
		for i, c := range cands {
			out[i] = fallback(c.ID, err)
		}
		return out
	}
	defer release()

	peers := make(map[string]bool, len(cands))
	for _, c := range cands {
		peers[c.ID] = true
	}
	sequential := d.cfg.BatchMode != model.BatchIndependent

	for i, c := range cands {
		out[i] = d.detectOne(c, peers)
		if sequential {
			delete(peers, c.ID)
			if out[i].Action == model.ActionPromoted {
				d.insert(c, model.StatusPromoted, "")
			}
		}
	}
	return out
}

func (d *Detector) detectOne(c model.NounPhraseCandidate, peers map[string]bool) (res model.DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fallback(c.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	matches, err := d.search(c, peers)
	if err != nil {
		return fallback(c.ID, err)
	}
	return DecideAction(c.ID, matches, d.cfg.SimilarityThreshold)
}

func fallback(id string, err error) model.DetectionResult {
	return model.DetectionResult{
		CandidateID: id,
		Action:      model.ActionPromoted,
		Confidence:  0,
		Reason:      err.Error(),
	}
}

// insert adds c to the live index, or updates its payload if already indexed.
// The caller holds the read lock.
func (d *Detector) insert(c model.NounPhraseCandidate, status model.CandidateStatus, conceptID string) {
	if len(c.Embedding) == 0 {
		return
	}
	e := entryOf(c)
	e.Status = status
	e.ConceptID = conceptID

	d.idsMu.Lock()
	defer d.idsMu.Unlock()
	if id, ok := d.nodeIDs[c.ID]; ok {
		_ = d.index.SetPayload(id, e)
		return
	}
	id, err := d.index.Add(c.Embedding, e)
	if err != nil {
		d.logger.Warn("insert into concept index failed", "candidate_id", c.ID, "error", err.Error())
		return
	}
	d.nodeIDs[c.ID] = id
}

// AssignConcept records the final status and concept of an indexed candidate.
// Merged candidates stop matching; promoted ones carry their concept id.
func (d *Detector) AssignConcept(ctx context.Context, c model.NounPhraseCandidate, status model.CandidateStatus, conceptID string) error {
	release, err := d.readIndex(ctx)
	if err != nil {
		return err
	}
	defer release()

	if status == model.StatusPromoted {
		d.insert(c, status, conceptID)
		return nil
	}
	d.idsMu.Lock()
	defer d.idsMu.Unlock()
	if id, ok := d.nodeIDs[c.ID]; ok {
		e, _ := d.index.Payload(id)
		e.Status = status
		e.ConceptID = conceptID
		return d.index.SetPayload(id, e)
	}
	return nil
}
