// Package embedding maps feature vectors to fixed-dimension unit-norm
// behavior embeddings for similarity search.
package embedding

import "math"

// DefaultDimension matches the vector index schema.
const DefaultDimension = 128

// Generator produces embeddings of a configured dimension.
type Generator struct {
	dim int
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithDimension overrides the embedding dimension.
func WithDimension(dim int) Option {
	return func(g *Generator) {
		if dim > 0 {
			g.dim = dim
		}
	}
}

// NewGenerator creates a generator with the default dimension.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{dim: DefaultDimension}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimension returns the configured embedding dimension.
func (g *Generator) Dimension() int { return g.dim }

// Embed copies the feature vector, zero-pads or truncates it to the
// configured dimension, and L2-normalizes. Never fails: an all-zero
// input yields the zero vector (norm guard against division by zero).
func (g *Generator) Embed(features []float64) []float32 {
	out := make([]float32, g.dim)
	n := len(features)
	if n > g.dim {
		n = g.dim
	}

	var sumSquares float64
	for i := 0; i < n; i++ {
		out[i] = float32(features[i])
		sumSquares += features[i] * features[i]
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}
