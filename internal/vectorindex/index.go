// Package vectorindex implements a flat, exact nearest-neighbor index
// over fixed-dimension float32 vectors.
//
// The index is positional: vector i corresponds to the i-th chunk embedded
// at build time, and search results refer to chunks by that position.
// Exact scan keeps recall at 100% and needs no tuning; repositories small
// enough to index in one pass never justify an approximate structure.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"coderag/pkg/types"
)

// Metric selects the distance function.
type Metric uint8

const (
	// MetricL2 is euclidean distance.
	MetricL2 Metric = 1
	// MetricCosine is 1 minus cosine similarity.
	MetricCosine Metric = 2
)

func (m Metric) valid() bool { return m == MetricL2 || m == MetricCosine }

// String implements fmt.Stringer.
func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// Result is one search hit: the insertion position of the matched vector
// and its distance from the query.
type Result struct {
	Position int
	Distance float64
}

// Index is a flat vector index. Not safe for concurrent mutation;
// concurrent searches on a fully built index are safe.
type Index struct {
	metric  Metric
	dim     int
	vectors []float32
	count   int
}

// New creates an empty index with a fixed dimension and metric.
func New(dim int, metric Metric) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	if !metric.valid() {
		return nil, fmt.Errorf("unknown metric %d", metric)
	}
	return &Index{metric: metric, dim: dim}, nil
}

// Dimension returns the fixed vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Metric returns the distance metric.
func (idx *Index) Metric() Metric { return idx.metric }

// Count returns the number of stored vectors.
func (idx *Index) Count() int { return idx.count }

// Add appends one vector. Position assignment follows insertion order.
func (idx *Index) Add(vec []float32) error {
	if len(vec) != idx.dim {
		return fmt.Errorf("%w: index dimension %d, vector dimension %d",
			types.ErrDimensionMismatch, idx.dim, len(vec))
	}
	idx.vectors = append(idx.vectors, vec...)
	idx.count++
	return nil
}

// AddBatch appends vectors in order; on error the index is unchanged.
func (idx *Index) AddBatch(vecs [][]float32) error {
	for _, vec := range vecs {
		if len(vec) != idx.dim {
			return fmt.Errorf("%w: index dimension %d, vector dimension %d",
				types.ErrDimensionMismatch, idx.dim, len(vec))
		}
	}
	for _, vec := range vecs {
		idx.vectors = append(idx.vectors, vec...)
		idx.count++
	}
	return nil
}

// Search returns up to k neighbors of the query ordered by ascending
// distance. Ties break on position so results are deterministic.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: index dimension %d, query dimension %d",
			types.ErrDimensionMismatch, idx.dim, len(query))
	}
	if k <= 0 || idx.count == 0 {
		return nil, nil
	}
	if k > idx.count {
		k = idx.count
	}

	results := make([]Result, idx.count)
	for i := 0; i < idx.count; i++ {
		vec := idx.vectors[i*idx.dim : (i+1)*idx.dim]
		results[i] = Result{Position: i, Distance: idx.distance(query, vec)}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Position < results[j].Position
	})
	return results[:k], nil
}

func (idx *Index) distance(a, b []float32) float64 {
	switch idx.metric {
	case MetricCosine:
		return cosineDistance(a, b)
	default:
		return l2Distance(a, b)
	}
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
