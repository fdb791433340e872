// Package operation names the arithmetic variants of the harness kernel family
// and their host-side closed forms.
package operation

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Kind is one arithmetic variant.
type Kind int

const (
	// Unknown is the zero Kind; it is never a valid selection.
	Unknown Kind = iota
	// ScaledSum computes out[i] = in[i] * factor (SAXPY style).
	ScaledSum
	// Sum computes c[i] = a[i] + b[i].
	Sum
	// Product computes c[i] = a[i] * b[i].
	Product
	// DoubledSum computes out[i] = in[i] + in[i]. It shares the scaled-sum
	// argument convention; the factor is bound but unused.
	DoubledSum
	// DoubledProduct computes out[i] = 2 * in[i], with the scaled-sum
	// argument convention.
	DoubledProduct
)

// ErrUnrecognized is returned by Classify and Parse for unknown names.
var ErrUnrecognized = errors.New("not recognized operation (saxpy|vecadd|dsum|vecmul|dmul)")

var kindNames = map[Kind]string{
	ScaledSum:      "saxpy",
	Sum:            "sum",
	Product:        "product",
	DoubledSum:     "doubled-sum",
	DoubledProduct: "doubled-product",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// token is a file name prefix and the kernel entry point it implies.
type token struct {
	prefix string
	kind   Kind
}

// No token is a prefix of another, so order only affects speed.
var tokens = []token{
	{"vecadd", Sum},
	{"vecmul", Product},
	{"saxpy", ScaledSum},
	{"dsum", DoubledSum},
	{"dmul", DoubledProduct},
}

// Classify maps a kernel file name to its operation and entry point name,
// using the prefix of the base name. The path itself is opaque.
func Classify(name string) (Kind, string, error) {
	base := filepath.Base(name)
	for _, t := range tokens {
		if strings.HasPrefix(base, t.prefix) {
			return t.kind, t.prefix, nil
		}
	}
	return Unknown, "", errors.Wrapf(ErrUnrecognized, "in kernel file %q", base)
}

// Parse accepts an explicit operation name: a Kind name or any classification token.
func Parse(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	for _, t := range tokens {
		if t.prefix == name {
			return t.kind, nil
		}
	}
	return Unknown, errors.Wrapf(ErrUnrecognized, "operation %q", name)
}

// DefaultEntry is the kernel entry point used when none is configured.
func (k Kind) DefaultEntry() string {
	switch k {
	case ScaledSum:
		return "saxpy"
	case Sum:
		return "vecadd"
	case Product:
		return "vecmul"
	case DoubledSum:
		return "dsum"
	case DoubledProduct:
		return "dmul"
	default:
		return ""
	}
}

// Scaled reports whether k takes the (input, output, factor) argument
// convention of the scaled sum.
func (k Kind) Scaled() bool {
	return k == ScaledSum || k == DoubledSum || k == DoubledProduct
}

// NumInputs is the number of input vectors the variant reads.
func (k Kind) NumInputs() int {
	switch k {
	case ScaledSum, DoubledSum, DoubledProduct:
		return 1
	case Sum, Product:
		return 2
	default:
		return 0
	}
}

// Expected is the closed-form host result for element i.
// inputs must hold NumInputs vectors; factor is used only by ScaledSum.
func (k Kind) Expected(inputs [][]float32, factor float32, i int) float32 {
	switch k {
	case ScaledSum:
		return inputs[0][i] * factor
	case Sum:
		return inputs[0][i] + inputs[1][i]
	case Product:
		return inputs[0][i] * inputs[1][i]
	case DoubledSum:
		return inputs[0][i] + inputs[0][i]
	case DoubledProduct:
		return 2 * inputs[0][i]
	default:
		panic(errors.Errorf("operation %s has no closed form", k))
	}
}
