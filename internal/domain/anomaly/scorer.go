// Package anomaly scores login feature vectors with an isolation forest
// trained lazily against a synthetic behavioral baseline.
package anomaly

import (
	"math"
	"math/rand"
	"sync"

	"github.com/ajitpdevops/rediguard/internal/domain/feature"
)

// Default model configuration constants.
const (
	defaultTreeCount  = 100
	defaultSubsample  = 256
	defaultSeed       = 42
	neutralScore      = 0.5
	normalPopulation  = 1000
	anomalyPopulation = 50
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithTreeCount sets the number of isolation trees.
func WithTreeCount(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.treeCount = n
		}
	}
}

// WithSubsample sets the per-tree training subsample size.
func WithSubsample(n int) Option {
	return func(s *Scorer) {
		if n > 1 {
			s.subsample = n
		}
	}
}

// WithSeed fixes the training RNG seed for reproducible models.
func WithSeed(seed int64) Option {
	return func(s *Scorer) { s.seed = seed }
}

// Scorer is an isolation-forest anomaly scorer. The zero state is
// untrained; training happens exactly once, on the first scoring call,
// guarded against concurrent duplicates. The transition is one-way.
type Scorer struct {
	mu      sync.Mutex
	trained bool

	treeCount int
	subsample int
	seed      int64

	trees []*treeNode
	mean  []float64
	std   []float64
}

// NewScorer creates an untrained scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		treeCount: defaultTreeCount,
		subsample: defaultSubsample,
		seed:      defaultSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trained reports whether the boundary model has been fit.
func (s *Scorer) Trained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trained
}

// Score returns an anomaly score in [0,1] for the feature vector; higher
// means more anomalous. Internal failures (including non-finite inputs)
// yield the neutral 0.5 rather than an error, so a detection failure can
// never block event ingestion.
func (s *Scorer) Score(features []float64) float64 {
	x := fitLength(features)
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return neutralScore
		}
	}

	s.mu.Lock()
	if !s.trained {
		s.train()
	}
	trees, mean, std := s.trees, s.mean, s.std
	s.mu.Unlock()

	if len(trees) == 0 {
		return neutralScore
	}

	scaled := make([]float64, len(x))
	for i, v := range x {
		scaled[i] = (v - mean[i]) / std[i]
	}

	var total float64
	for _, t := range trees {
		total += pathLength(t, scaled)
	}
	avg := total / float64(len(trees))

	// Ease of isolation rescaled to (0,1): 2^(-E[h]/c(n)).
	score := math.Pow(2, -avg/avgPathLength(s.subsample))
	return clamp01(score)
}

// train fits the scaler and forest against the synthetic baseline.
// Callers must hold s.mu.
func (s *Scorer) train() {
	rng := rand.New(rand.NewSource(s.seed)) //nolint:gosec // deterministic baseline
	data := baseline(rng)

	s.mean, s.std = fitScaler(data)
	scaled := make([][]float64, len(data))
	for i, row := range data {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - s.mean[j]) / s.std[j]
		}
		scaled[i] = r
	}

	maxDepth := int(math.Ceil(math.Log2(float64(s.subsample))))
	s.trees = make([]*treeNode, s.treeCount)
	for i := range s.trees {
		s.trees[i] = buildTree(rng, subsample(rng, scaled, s.subsample), 0, maxDepth)
	}
	s.trained = true
}

// baseline generates the synthetic training population: a majority of
// low-variance working-hours logins from common address ranges and a
// minority of high-variance logins from arbitrary hours and addresses.
func baseline(rng *rand.Rand) [][]float64 {
	data := make([][]float64, 0, normalPopulation+anomalyPopulation)

	for i := 0; i < normalPopulation; i++ {
		row := make([]float64, feature.Size)
		row[0] = float64(8 + rng.Intn(10))         // working hours
		row[1] = float64(1 + rng.Intn(5))          // weekday
		row[2] = float64(1 + rng.Intn(28))         // day of month
		row[3] = float64(192 + rng.Intn(2))        // common first octet
		row[4] = float64(168 + rng.Intn(2))        // common second octet
		row[5] = float64(rng.Intn(100))            // familiar location bucket
		row[6] = float64(3 + rng.Intn(5))          // login frequency
		row[7] = float64(1 + rng.Intn(2))          // unique IPs
		row[8] = 1                                 // unique locations
		row[9] = 3600 + rng.NormFloat64()*600      // avg inter-login seconds
		data = append(data, row)
	}

	for i := 0; i < anomalyPopulation; i++ {
		row := make([]float64, feature.Size)
		row[0] = float64(rng.Intn(24))             // any hour
		row[1] = float64(rng.Intn(7))              // any day
		row[2] = float64(1 + rng.Intn(28))
		row[3] = float64(rng.Intn(256))            // arbitrary address
		row[4] = float64(rng.Intn(256))
		row[5] = float64(500 + rng.Intn(500))      // unusual location bucket
		row[6] = float64(15 + rng.Intn(10))        // high frequency
		row[7] = float64(5 + rng.Intn(15))         // many IPs
		row[8] = float64(5 + rng.Intn(5))          // many locations
		row[9] = 300 + rng.NormFloat64()*100       // quick succession
		data = append(data, row)
	}

	return data
}

// fitScaler computes per-feature mean and stddev; constant features get
// a unit stddev so standardization stays total.
func fitScaler(data [][]float64) (mean, std []float64) {
	dims := len(data[0])
	mean = make([]float64, dims)
	std = make([]float64, dims)

	for _, row := range data {
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(data))
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range data {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}
	return mean, std
}

// subsample draws up to n rows without replacement.
func subsample(rng *rand.Rand, data [][]float64, n int) [][]float64 {
	if n >= len(data) {
		return data
	}
	idx := rng.Perm(len(data))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

// fitLength pads or truncates to the fixed feature size.
func fitLength(v []float64) []float64 {
	out := make([]float64, feature.Size)
	copy(out, v)
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
