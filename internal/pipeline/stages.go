package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/aclarai/internal/llm"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/retry"
)

// complete runs one stage call under the stage timeout, rate limiter and retry policy
func (p *Pipeline) complete(ctx context.Context, stage, modelName, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout())
	defer cancel()

	req := llm.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Model:       modelName,
		Temperature: 0,
		JSONMode:    true,
	}
	resp, err := retry.Do(ctx, p.retryPolicy, stage, func(ctx context.Context) (*llm.CompletionResponse, error) {
		if err := p.limiter.Wait(ctx, p.provider.Name()); err != nil {
			return nil, err
		}
		return p.provider.Complete(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	return resp.Text, nil
}

func (p *Pipeline) selectStage(ctx context.Context, cc model.ClaimifyContext) (*model.SelectionResult, error) {
	start := time.Now()
	text, err := p.complete(ctx, "selection", p.cfg.SelectionModel, selectionSystem, selectionPrompt(cc))
	if err != nil {
		return nil, err
	}
	r, err := parseSelection(text)
	if err != nil {
		return nil, fmt.Errorf("selection: %w", err)
	}

	res := &model.SelectionResult{
		Chunk:      cc.Current,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
	}
	switch {
	case !*r.Selected:
		res.RejectedBy = model.RejectedByModel
	case r.Confidence < p.cfg.SelectionConfidenceThreshold:
		res.RejectedBy = model.RejectedByThreshold
	default:
		res.IsSelected = true
	}
	res.ProcessingTime = time.Since(start)
	return res, nil
}

func (p *Pipeline) disambiguateStage(ctx context.Context, cc model.ClaimifyContext) (*model.DisambiguationResult, error) {
	start := time.Now()
	text, err := p.complete(ctx, "disambiguation", p.cfg.DisambiguationModel, disambiguationSystem, disambiguationPrompt(cc))
	if err != nil {
		return nil, err
	}
	r, err := parseDisambiguation(text)
	if err != nil {
		return nil, fmt.Errorf("disambiguation: %w", err)
	}

	res := &model.DisambiguationResult{
		OriginalText:      cc.Current.Text,
		DisambiguatedText: r.DisambiguatedText,
		Changes:           r.Changes,
		Confidence:        r.Confidence,
		Applied:           true,
	}
	if r.Confidence < p.cfg.DisambiguationConfidenceThreshold {
		p.logger.Debug("disambiguation below threshold, keeping original text",
			"chunk_id", cc.Current.ChunkID, "confidence", r.Confidence)
		res.DisambiguatedText = cc.Current.Text
		res.Changes = nil
		res.Applied = false
	}
	res.ProcessingTime = time.Since(start)
	return res, nil
}

func (p *Pipeline) decomposeStage(ctx context.Context, text string) (*model.DecompositionResult, error) {
	start := time.Now()
	out, err := p.complete(ctx, "decomposition", p.cfg.DecompositionModel, decompositionSystem, decompositionPrompt(text))
	if err != nil {
		return nil, err
	}
	r, err := parseDecomposition(out)
	if err != nil {
		return nil, fmt.Errorf("decomposition: %w", err)
	}

	res := &model.DecompositionResult{InputText: text}
	for _, c := range r.ClaimCandidates {
		if c.Confidence < p.cfg.DecompositionConfidenceThreshold {
			res.Dropped++
			continue
		}
		res.ClaimCandidates = append(res.ClaimCandidates, c)
	}
	res.ProcessingTime = time.Since(start)
	return res, nil
}
