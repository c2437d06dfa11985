// Package embeddings defines the Provider interface for vector embedding backends.
//
// The tutor uses embeddings to grade free-form answers by meaning: the learner's
// answer and the reference answer are embedded together and compared with
// Cosine.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"math"
)

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider share the same dimensionality.
type Provider interface {
	// EmbedBatch computes one vector per text in a single backend call. The
	// i-th result corresponds to texts[i]. On error no partial result is
	// returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID returns the backend model identifier, e.g. "nomic-embed-text".
	ModelID() string
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different length or with zero magnitude yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
