package ai

import (
	"fmt"
	"math/rand"
)

// Perturbation selects the distribution a random turn is drawn from.
type Perturbation uint8

const (
	// PerturbBinomial is rand-rand: symmetric in (-1, 1), peaked at zero.
	PerturbBinomial Perturbation = iota
	// PerturbUniform is symmetric and flat over [-1, 1).
	PerturbUniform
	// PerturbPositive is one-sided over [0, 1); actors only ever turn one way.
	PerturbPositive
)

func ParsePerturbation(s string) (Perturbation, error) {
	switch s {
	case "", "binomial":
		return PerturbBinomial, nil
	case "uniform":
		return PerturbUniform, nil
	case "positive":
		return PerturbPositive, nil
	}
	return 0, fmt.Errorf("unknown perturbation %q", s)
}

func (p Perturbation) String() string {
	switch p {
	case PerturbBinomial:
		return "binomial"
	case PerturbUniform:
		return "uniform"
	case PerturbPositive:
		return "positive"
	}
	return fmt.Sprintf("Perturbation(%d)", uint8(p))
}

// Sample draws one value from rnd.
func (p Perturbation) Sample(rnd *rand.Rand) float32 {
	switch p {
	case PerturbUniform:
		return 2*rnd.Float32() - 1
	case PerturbPositive:
		return rnd.Float32()
	default:
		return rnd.Float32() - rnd.Float32()
	}
}
