//go:build !gocv

package embedding

import (
	"bytes"
	"fmt"
)

// NewExtractor builds the extractor for a model artifact. Without an
// artifact the seeded grid projection of length dim is used.
func NewExtractor(artifact []byte, dim int) (FeatureExtractor, error) {
	if len(artifact) == 0 {
		return NewSeededGridExtractor(dim, DefaultSeed), nil
	}
	if !IsWeightsArtifact(artifact) {
		return nil, fmt.Errorf("%w: not a grid weights file; network models need the gocv build", ErrBadWeights)
	}

	w, err := LoadWeights(bytes.NewReader(artifact))
	if err != nil {
		return nil, err
	}
	return NewGridExtractor(w)
}
