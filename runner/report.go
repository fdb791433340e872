package runner

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Print writes the first and last four elements, the timing and, when
// verification ran, the verification report. A simulated run is flagged
// before the report.
func (res *Result) Print(w io.Writer) {
	n := len(res.Output)
	fmt.Fprintf(w, "Result (%s, entry %s, device %s):\n", res.Operation, res.Entry, res.Device)
	for i := 0; i < n; i++ {
		if i >= 4 && i < n-4 {
			i = n - 5
			continue
		}
		host := res.Operation.Expected(res.Inputs, res.Factor, i)
		fmt.Fprintf(w, "[%d] Device (%.5f) Host (%.5f)\n", i, res.Output[i], host)
	}
	if res.Timing.End != 0 || res.Timing.Start != 0 {
		elapsed := res.Timing.Elapsed()
		fmt.Fprintf(w, "time(ns):%d\n", elapsed.Nanoseconds())
		if elapsed > 0 {
			fmt.Fprintf(w, "throughput: %s\n", humanize.SIWithDigits(float64(n)/elapsed.Seconds(), 2, "elements/s"))
		}
	}
	fmt.Fprintf(w, "host time: %s\n", res.Timing.Host)
	fmt.Fprintf(w, "computed %d elements\n", n)
	if res.Simulated {
		fmt.Fprintf(w, "WARNING: %s was simulated by a built-in; the kernel source was not executed\n", res.Entry)
	}
	if res.Report != nil {
		res.Report.Print(w)
	}
}
