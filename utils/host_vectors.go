package utils

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var maxRandom = math.Nextafter32(100, 0)

// Fill selects how host input vectors are generated.
type Fill int

const (
	// FillSequence fills input k with (i+1)*(k+1): A = 1, 2, 3, ...; B = 2, 4, 6, ...
	FillSequence Fill = iota
	// FillRandom fills with uniform values in [0, 100).
	FillRandom
)

func (f Fill) String() string {
	if f == FillRandom {
		return "random"
	}
	return "sequence"
}

// ParseFill converts "sequence" or "random" to a Fill.
func ParseFill(name string) (Fill, error) {
	switch name {
	case "sequence", "seq":
		return FillSequence, nil
	case "random", "rand":
		return FillRandom, nil
	}
	return FillSequence, errors.Errorf("unknown fill %q (want sequence or random)", name)
}

// NewHostVector returns input vector number k of length n. Random fills are
// reproducible for a given seed and k.
func NewHostVector(n, k int, fill Fill, seed uint64) []float32 {
	out := make([]float32, n)
	switch fill {
	case FillRandom:
		u := distuv.Uniform{Min: 0, Max: 100, Src: rand.NewPCG(seed, uint64(k))}
		for i := range out {
			// Narrowing to float32 can round up to the open bound.
			out[i] = min(float32(u.Rand()), maxRandom)
		}
	default:
		if n == 0 {
			return out
		}
		values := make([]float64, n)
		if n == 1 {
			values[0] = 1
		} else {
			floats.Span(values, 1, float64(n))
		}
		floats.Scale(float64(k+1), values)
		for i, v := range values {
			out[i] = float32(v)
		}
	}
	return out
}

// NewHostVectors returns count input vectors of length n.
func NewHostVectors(count, n int, fill Fill, seed uint64) [][]float32 {
	vectors := make([][]float32, count)
	for k := range vectors {
		vectors[k] = NewHostVector(n, k, fill, seed)
	}
	return vectors
}
