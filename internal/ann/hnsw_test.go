package ann

import (
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func bruteForce(vecs [][]float32, q []float32, k int) []int {
	type hit struct {
		id  int
		sim float64
	}
	hits := make([]hit, 0, len(vecs))
	for i, v := range vecs {
		s, _ := CosineSimilarity(q, v)
		hits = append(hits, hit{i, s})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	ids := make([]int, 0, k)
	for _, h := range hits[:k] {
		ids = append(ids, h.id)
	}
	return ids
}

func TestIndex_RecallAgainstBruteForce(t *testing.T) {
	vecs := randomVectors(600, 24, 1)
	ix := New[int](0, DefaultConfig())
	for i, v := range vecs {
		id, err := ix.Add(v, i)
		require.NoError(t, err)
		require.Equal(t, i, id)
	}
	require.Equal(t, 600, ix.Len())

	queries := randomVectors(50, 24, 2)
	const k = 10
	hits := 0
	for _, q := range queries {
		got, err := ix.Search(q, k, nil)
		require.NoError(t, err)
		require.Len(t, got, k)
		want := map[int]bool{}
		for _, id := range bruteForce(vecs, q, k) {
			want[id] = true
		}
		for _, r := range got {
			if want[r.ID] {
				hits++
			}
		}
	}
	recall := float64(hits) / float64(len(queries)*k)
	assert.GreaterOrEqual(t, recall, 0.9, "recall %.3f", recall)
}

func TestIndex_ExactVectorIsTopHit(t *testing.T) {
	vecs := randomVectors(200, 16, 3)
	ix := New[string](16, DefaultConfig())
	for _, v := range vecs {
		_, err := ix.Add(v, "x")
		require.NoError(t, err)
	}

	got, err := ix.Search(vecs[17], 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 17, got[0].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
}

func TestIndex_FilterSkipsRejected(t *testing.T) {
	ix := New[string](0, DefaultConfig())
	assert.Zero(t, ix.Dim())
	_, _ = ix.Add([]float32{1, 0, 0}, "self")
	_, _ = ix.Add([]float32{0.9, 0.1, 0}, "near")
	_, _ = ix.Add([]float32{0, 1, 0}, "far")
	assert.Equal(t, 3, ix.Dim())

	got, err := ix.Search([]float32{1, 0, 0}, 5, func(_ int, p string) bool { return p != "self" })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Payload)
	assert.Equal(t, "far", got[1].Payload)
	assert.Equal(t, 0.0, got[1].Similarity)
}

func TestIndex_NegativeSimilarityClamped(t *testing.T) {
	ix := New[int](0, DefaultConfig())
	_, _ = ix.Add([]float32{-1, 0}, 0)

	got, err := ix.Search([]float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Similarity)
}

func TestIndex_Errors(t *testing.T) {
	ix := New[int](3, DefaultConfig())

	_, err := ix.Add([]float32{1, 2}, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ix.Add([]float32{0, 0, 0}, 0)
	assert.ErrorIs(t, err, ErrZeroVector)

	got, err := ix.Search([]float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, _ = ix.Add([]float32{1, 0, 0}, 0)
	_, err = ix.Search([]float32{1, 0}, 3, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	assert.ErrorIs(t, ix.SetPayload(9, 1), ErrNotFound)
}

func TestIndex_SetPayload(t *testing.T) {
	ix := New[string](0, DefaultConfig())
	id, _ := ix.Add([]float32{1, 1}, "pending")
	require.NoError(t, ix.SetPayload(id, "promoted"))

	p, ok := ix.Payload(id)
	require.True(t, ok)
	assert.Equal(t, "promoted", p)
}

func TestIndex_ConcurrentAddAndSearch(t *testing.T) {
	vecs := randomVectors(300, 8, 4)
	ix := New[int](8, DefaultConfig())
	for _, v := range vecs[:50] {
		_, _ = ix.Add(v, 0)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, v := range vecs[50:] {
			_, _ = ix.Add(v, 0)
		}
	}()
	go func() {
		defer wg.Done()
		for _, v := range vecs[:100] {
			_, err := ix.Search(v, 5, nil)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()
	assert.Equal(t, 300, ix.Len())
}
