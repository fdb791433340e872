// Package verify recomputes kernel results on the host and compares them
// element-wise against device output.
package verify

import (
	"github.com/notargets/KernelHarness/operation"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultSamples is the number of matched pairs kept for a visual sanity check.
const DefaultSamples = 3

// Options controls the comparison.
type Options struct {
	// Tolerance of zero means exact float equality. A positive value accepts
	// elements within Tolerance, absolute or relative.
	Tolerance float64
	// Samples bounds Report.Samples; zero means DefaultSamples.
	Samples int
}

// Pair is one compared element.
type Pair struct {
	Index  int
	Host   float32
	Device float32
}

// Report is the outcome of Verify.
type Report struct {
	Op         operation.Kind
	Checked    int
	Samples    []Pair // first matched pairs
	Mismatches []Pair // every mismatched element
	AllMatched bool
}

// Inputs are the host operands of a run.
type Inputs struct {
	Vectors [][]float32
	Factor  float32
}

// Verify compares output against the closed form of op applied to in.
// AllMatched is true iff every element compares equal.
func Verify(op operation.Kind, in Inputs, output []float32, opts Options) (*Report, error) {
	if op.NumInputs() == 0 {
		return nil, errors.Errorf("cannot verify operation %s", op)
	}
	if len(in.Vectors) != op.NumInputs() {
		return nil, errors.Errorf("operation %s needs %d input vectors, got %d", op, op.NumInputs(), len(in.Vectors))
	}
	for i, v := range in.Vectors {
		if len(v) != len(output) {
			return nil, errors.Errorf("input %d has %d elements, output has %d", i, len(v), len(output))
		}
	}
	samples := opts.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	report := &Report{Op: op, Checked: len(output), AllMatched: true}
	for i, got := range output {
		want := op.Expected(in.Vectors, in.Factor, i)
		if equal(want, got, opts.Tolerance) {
			if len(report.Samples) < samples {
				report.Samples = append(report.Samples, Pair{Index: i, Host: want, Device: got})
			}
			continue
		}
		report.AllMatched = false
		report.Mismatches = append(report.Mismatches, Pair{Index: i, Host: want, Device: got})
	}
	return report, nil
}

func equal(want, got float32, tol float64) bool {
	if tol <= 0 {
		return want == got
	}
	return scalar.EqualWithinAbsOrRel(float64(want), float64(got), tol, tol)
}
