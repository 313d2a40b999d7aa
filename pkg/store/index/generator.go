package index

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// MinID is the smallest 16-digit id.
	MinID int64 = 1_000_000_000_000_000

	// MaxID is the largest 16-digit id.
	MaxID int64 = 9_999_999_999_999_999
)

// Generator produces entry ids.
type Generator interface {
	NewID() (int64, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (int64, error)

// NewID calls f.
func (f GeneratorFunc) NewID() (int64, error) {
	return f()
}

// RandomGenerator draws ids uniformly from [MinID, MaxID] using crypto/rand.
type RandomGenerator struct{}

var idSpan = big.NewInt(MaxID - MinID + 1)

// NewID returns a random 16-digit id.
func (RandomGenerator) NewID() (int64, error) {
	n, err := rand.Int(rand.Reader, idSpan)
	if err != nil {
		return 0, fmt.Errorf("failed to generate id: %w", err)
	}
	return MinID + n.Int64(), nil
}
