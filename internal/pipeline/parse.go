package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/aclarai/internal/model"
)

// ErrMalformedResponse marks model output that could not be parsed
var ErrMalformedResponse = errors.New("malformed model response")

type selectionResponse struct {
	Selected   *bool   `json:"selected"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type disambiguationResponse struct {
	DisambiguatedText string   `json:"disambiguated_text"`
	Changes           []string `json:"changes"`
	Confidence        float64  `json:"confidence"`
}

type decompositionResponse struct {
	ClaimCandidates []model.ClaimCandidate `json:"claim_candidates"`
}

// jsonObject strips Markdown fences and prose around the first JSON object
func jsonObject(response string) (string, error) {
	s := strings.TrimSpace(response)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in %.80q", ErrMalformedResponse, response)
	}
	return s[start : end+1], nil
}

func decode(response string, v any) error {
	obj, err := jsonObject(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func checkConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, c)
	}
	return nil
}

func parseSelection(response string) (selectionResponse, error) {
	var r selectionResponse
	if err := decode(response, &r); err != nil {
		return r, err
	}
	if r.Selected == nil {
		return r, fmt.Errorf("%w: missing \"selected\"", ErrMalformedResponse)
	}
	return r, checkConfidence(r.Confidence)
}

func parseDisambiguation(response string) (disambiguationResponse, error) {
	var r disambiguationResponse
	if err := decode(response, &r); err != nil {
		return r, err
	}
	r.DisambiguatedText = strings.TrimSpace(r.DisambiguatedText)
	if r.DisambiguatedText == "" {
		return r, fmt.Errorf("%w: empty \"disambiguated_text\"", ErrMalformedResponse)
	}
	return r, checkConfidence(r.Confidence)
}

func parseDecomposition(response string) (decompositionResponse, error) {
	var r decompositionResponse
	if err := decode(response, &r); err != nil {
		return r, err
	}
	kept := r.ClaimCandidates[:0]
	for _, c := range r.ClaimCandidates {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		if err := checkConfidence(c.Confidence); err != nil {
			return r, err
		}
		kept = append(kept, c)
	}
	r.ClaimCandidates = kept
	return r, nil
}
