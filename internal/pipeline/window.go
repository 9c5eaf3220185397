package pipeline

import "github.com/ppiankov/aclarai/internal/model"

// BuildContexts returns one context per chunk. preceding is chunks[max(0,i-p):i]
// and following is chunks[i+1:min(n,i+1+f)]; windows truncate at the edges.
func BuildContexts(chunks []model.SentenceChunk, p, f int) []model.ClaimifyContext {
	if p < 0 {
		p = 0
	}
	if f < 0 {
		f = 0
	}
	n := len(chunks)
	out := make([]model.ClaimifyContext, n)
	for i := range chunks {
		out[i] = model.ClaimifyContext{
			Current:   chunks[i],
			Preceding: cloneChunks(chunks[max(0, i-p):i]),
			Following: cloneChunks(chunks[i+1 : min(n, i+1+f)]),
		}
	}
	return out
}

// cloneChunks copies so that contexts never alias the caller's slice
func cloneChunks(in []model.SentenceChunk) []model.SentenceChunk {
	out := make([]model.SentenceChunk, len(in))
	copy(out, in)
	return out
}
