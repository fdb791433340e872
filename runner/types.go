package runner

import (
	"time"
)

// Float32Size is the size in bytes of one vector element.
const Float32Size = 4

// DispatchState tracks one kernel submission.
type DispatchState int

const (
	Unsubmitted DispatchState = iota
	Queued
	Running
	Complete
	Failed
)

func (s DispatchState) String() string {
	switch s {
	case Unsubmitted:
		return "Unsubmitted"
	case Queued:
		return "Queued"
	case Running:
		return "Running"
	case Complete:
		return "Complete"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s DispatchState) Terminal() bool {
	return s == Complete || s == Failed
}

// Timing of one dispatch. Start and End are device clocks in nanoseconds and
// are zero when the queue was created without profiling. Host is the wall
// time from submission to completion as seen by the host.
type Timing struct {
	Start, End int64
	Host       time.Duration
}

// Elapsed is the device execution time, End - Start.
func (t Timing) Elapsed() time.Duration {
	return time.Duration(t.End - t.Start)
}
