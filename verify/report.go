package verify

import (
	"fmt"
	"io"
)

// Print writes the samples, every mismatch and the verdict.
func (r *Report) Print(w io.Writer) {
	for _, p := range r.Samples {
		fmt.Fprintf(w, "[%d] Host: %.6f  Device: %.6f\n", p.Index, p.Host, p.Device)
	}
	for _, p := range r.Mismatches {
		fmt.Fprintf(w, "[FAILURE] at index %d:  %.6f != %.6f\n", p.Index, p.Host, p.Device)
	}
	if r.AllMatched {
		fmt.Fprintf(w, "Everything seems to work fine! (%d elements, %s)\n", r.Checked, r.Op)
		return
	}
	fmt.Fprintf(w, "%d of %d elements mismatched (%s)\n", len(r.Mismatches), r.Checked, r.Op)
}
