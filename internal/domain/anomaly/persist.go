package anomaly

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// modelFormatVersion is bumped whenever the serialized layout changes.
const modelFormatVersion = 1

// Sentinel kinds for model persistence errors.
var (
	ErrUntrained    = errors.New("model not trained")
	ErrModelVersion = errors.New("unsupported model format version")
	ErrModelCorrupt = errors.New("corrupt model file")
)

// modelFile is the versioned on-disk representation of a trained model.
type modelFile struct {
	FormatVersion int         `json:"format_version"`
	TreeCount     int         `json:"tree_count"`
	Subsample     int         `json:"subsample"`
	Mean          []float64   `json:"mean"`
	Std           []float64   `json:"std"`
	Trees         []*treeNode `json:"trees"`
}

// Save writes the trained model. Returns ErrUntrained when there is
// nothing to persist.
func (s *Scorer) Save(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.trained {
		return ErrUntrained
	}
	f := modelFile{
		FormatVersion: modelFormatVersion,
		TreeCount:     s.treeCount,
		Subsample:     s.subsample,
		Mean:          s.mean,
		Std:           s.std,
		Trees:         s.trees,
	}
	if err := json.NewEncoder(w).Encode(&f); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Load replaces the scorer state with a previously saved model. A
// version mismatch fails with ErrModelVersion and leaves the scorer
// untouched, so it can still train lazily.
func (s *Scorer) Load(r io.Reader) error {
	var f modelFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("%w: %v", ErrModelCorrupt, err)
	}
	if f.FormatVersion != modelFormatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrModelVersion, f.FormatVersion, modelFormatVersion)
	}
	if len(f.Trees) == 0 || len(f.Mean) == 0 || len(f.Mean) != len(f.Std) {
		return ErrModelCorrupt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeCount = f.TreeCount
	s.subsample = f.Subsample
	s.mean = f.Mean
	s.std = f.Std
	s.trees = f.Trees
	s.trained = true
	return nil
}
