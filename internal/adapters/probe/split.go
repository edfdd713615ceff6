// Package probe evaluates frozen embeddings with a logistic-regression
// linear probe.
package probe

import (
	"math/rand/v2"

	"github.com/gclflow/gclflow/internal/app/dto"
)

// Default split ratios. What remains after train and test is validation.
const (
	DefaultTrainRatio = 0.1
	DefaultTestRatio  = 0.8
)

// RandomSplit shuffles node indices with a seeded generator and cuts them
// into int(n*train) training nodes, int(n*test) test nodes and the rest
// as validation.
func RandomSplit(n int, trainRatio, testRatio float64, seed uint64) (dto.Split, error) {
	trainSize := int(float64(n) * trainRatio)
	testSize := int(float64(n) * testRatio)
	if trainSize < 1 || testSize < 1 || trainSize+testSize > n {
		return dto.Split{}, dto.ErrEmptySplit
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	perm := rng.Perm(n)
	return dto.Split{
		Train: perm[:trainSize],
		Test:  perm[trainSize : trainSize+testSize],
		Val:   perm[trainSize+testSize:],
	}, nil
}
