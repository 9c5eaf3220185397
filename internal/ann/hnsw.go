// Package ann provides an in-memory HNSW index over cosine similarity.
//
// Vectors are L2-normalized on insert so distance is 1 - dot product. IDs are
// assigned monotonically from 0 in insertion order. Writers are serialized by
// the index lock and searches run concurrently under the read lock.
package ann

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrZeroVector        = errors.New("zero-length or zero-norm vector")
	ErrNotFound          = errors.New("id not in index")
)

// Config holds the HNSW construction and search parameters
type Config struct {
	M              int   // Links per node on upper layers (layer 0 keeps 2*M)
	EfConstruction int   // Candidate list size while inserting
	EfSearch       int   // Candidate list size while querying
	Seed           int64 // Level generator seed
}

// DefaultConfig returns parameters tuned for recall over latency
func DefaultConfig() Config {
	return Config{M: 16, EfConstruction: 200, EfSearch: 50, Seed: 42}
}

// Result is one search hit
type Result[T any] struct {
	ID         int
	Similarity float64 // Cosine similarity clamped to [0,1]
	Payload    T
}

type node[T any] struct {
	vec       []float64
	neighbors [][]int // Per layer, 0..level
	payload   T
}

// Index is an HNSW graph whose nodes carry a payload of type T
type Index[T any] struct {
	mu        sync.RWMutex
	cfg       Config
	dim       int
	nodes     []*node[T]
	entry     int
	maxLevel  int
	rng       *rand.Rand
	levelMult float64
}

// New creates an empty index. A dim of 0 takes the dimension of the first vector added.
func New[T any](dim int, cfg Config) *Index[T] {
	def := DefaultConfig()
	if cfg.M <= 1 {
		cfg.M = def.M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = def.EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = def.EfSearch
	}
	return &Index[T]{
		cfg:       cfg,
		dim:       dim,
		entry:     -1,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		levelMult: 1 / math.Log(float64(cfg.M)),
	}
}

// Len returns the number of indexed vectors
func (ix *Index[T]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodes)
}

// Dim returns the vector dimension, 0 while empty and unconfigured
func (ix *Index[T]) Dim() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Add inserts a vector and returns its ID
func (ix *Index[T]) Add(vec []float32, payload T) (int, error) {
	v, err := normalize(vec)
	if err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim == 0 {
		ix.dim = len(v)
	} else if len(v) != ix.dim {
		return 0, fmt.Errorf("add vector of dim %d to index of dim %d: %w", len(v), ix.dim, ErrDimensionMismatch)
	}

	id := len(ix.nodes)
	level := ix.randomLevel()
	n := &node[T]{vec: v, neighbors: make([][]int, level+1), payload: payload}
	ix.nodes = append(ix.nodes, n)

	if ix.entry < 0 {
		ix.entry = id
		ix.maxLevel = level
		return id, nil
	}

	cur := ix.greedy(v, ix.entry, ix.maxLevel, level)
	eps := []int{cur}
	for l := min(level, ix.maxLevel); l >= 0; l-- {
		found := ix.searchLayer(v, eps, ix.cfg.EfConstruction, l)
		maxConn := ix.cfg.M
		if l == 0 {
			maxConn = 2 * ix.cfg.M
		}
		linked := 0
		for _, it := range found {
			if it.id == id || linked == ix.cfg.M {
				continue
			}
			n.neighbors[l] = append(n.neighbors[l], it.id)
			ix.connect(it.id, id, l, maxConn)
			linked++
		}
		eps = eps[:0]
		for _, it := range found {
			eps = append(eps, it.id)
		}
	}

	if level > ix.maxLevel {
		ix.entry = id
		ix.maxLevel = level
	}
	return id, nil
}

// Search returns up to k nearest vectors to query, most similar first.
// Nodes rejected by filter are skipped; the candidate list grows until k
// accepted hits are found or the whole graph has been considered.
func (ix *Index[T]) Search(query []float32, k int, filter func(id int, payload T) bool) ([]Result[T], error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.nodes) == 0 {
		return nil, nil
	}
	if len(q) != ix.dim {
		return nil, fmt.Errorf("query of dim %d against index of dim %d: %w", len(q), ix.dim, ErrDimensionMismatch)
	}

	cur := ix.greedy(q, ix.entry, ix.maxLevel, 0)
	ef := max(ix.cfg.EfSearch, k)

	var out []Result[T]
	for {
		found := ix.searchLayer(q, []int{cur}, ef, 0)
		out = out[:0]
		for _, it := range found {
			n := ix.nodes[it.id]
			if filter != nil && !filter(it.id, n.payload) {
				continue
			}
			out = append(out, Result[T]{ID: it.id, Similarity: clamp01(1 - it.dist), Payload: n.payload})
		}
		if len(out) >= k || ef >= len(ix.nodes) {
			break
		}
		ef *= 2
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Payload returns the payload stored for id
func (ix *Index[T]) Payload(id int) (T, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if id < 0 || id >= len(ix.nodes) {
		var zero T
		return zero, false
	}
	return ix.nodes[id].payload, true
}

// SetPayload replaces the payload stored for id
func (ix *Index[T]) SetPayload(id int, payload T) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if id < 0 || id >= len(ix.nodes) {
		return fmt.Errorf("set payload %d: %w", id, ErrNotFound)
	}
	ix.nodes[id].payload = payload
	return nil
}

// greedy walks from ep down to layer stop+1 keeping only the closest node per layer
func (ix *Index[T]) greedy(q []float64, ep, top, stop int) int {
	cur := ep
	curDist := ix.dist(q, cur)
	for l := top; l > stop; l-- {
		for changed := true; changed; {
			changed = false
			for _, nb := range ix.nodes[cur].neighbors[l] {
				if d := ix.dist(q, nb); d < curDist {
					cur, curDist = nb, d
					changed = true
				}
			}
		}
	}
	return cur
}

// searchLayer returns up to ef closest nodes on layer, nearest first
func (ix *Index[T]) searchLayer(q []float64, eps []int, ef, layer int) []item {
	visited := make(map[int]struct{}, ef*4)
	cand := &minHeap{}
	res := &maxHeap{}

	for _, ep := range eps {
		if _, ok := visited[ep]; ok {
			continue
		}
		visited[ep] = struct{}{}
		it := item{id: ep, dist: ix.dist(q, ep)}
		heap.Push(cand, it)
		heap.Push(res, it)
		if res.Len() > ef {
			heap.Pop(res)
		}
	}

	for cand.Len() > 0 {
		c := heap.Pop(cand).(item)
		if res.Len() >= ef && c.dist > (*res)[0].dist {
			break
		}
		for _, nb := range ix.nodes[c.id].neighbors[layer] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			d := ix.dist(q, nb)
			if res.Len() < ef || d < (*res)[0].dist {
				heap.Push(cand, item{id: nb, dist: d})
				heap.Push(res, item{id: nb, dist: d})
				if res.Len() > ef {
					heap.Pop(res)
				}
			}
		}
	}

	out := make([]item, res.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(res).(item)
	}
	return out
}

// connect adds a link from -> to on layer, pruning to the maxConn closest
func (ix *Index[T]) connect(from, to, layer, maxConn int) {
	n := ix.nodes[from]
	n.neighbors[layer] = append(n.neighbors[layer], to)
	if len(n.neighbors[layer]) <= maxConn {
		return
	}
	links := n.neighbors[layer]
	sort.Slice(links, func(i, j int) bool {
		return ix.dist(n.vec, links[i]) < ix.dist(n.vec, links[j])
	})
	n.neighbors[layer] = links[:maxConn]
}

func (ix *Index[T]) dist(q []float64, id int) float64 {
	return 1 - floats.Dot(q, ix.nodes[id].vec)
}

func (ix *Index[T]) randomLevel() int {
	return int(math.Floor(-math.Log(1-ix.rng.Float64()) * ix.levelMult))
}

func normalize(vec []float32) ([]float64, error) {
	if len(vec) == 0 {
		return nil, ErrZeroVector
	}
	v := make([]float64, len(vec))
	for i, x := range vec {
		v[i] = float64(x)
	}
	norm := floats.Norm(v, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrZeroVector
	}
	floats.Scale(1/norm, v)
	return v, nil
}

// CosineSimilarity returns the cosine similarity of a and b clamped to [0,1]
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	va, err := normalize(a)
	if err != nil {
		return 0, err
	}
	vb, err := normalize(b)
	if err != nil {
		return 0, err
	}
	return clamp01(floats.Dot(va, vb)), nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
