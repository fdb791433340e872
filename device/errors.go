package device

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoPlatform is returned when the backend exposes no platform.
	ErrNoPlatform = errors.New("no compute platform found")

	// ErrNoDevice is returned when a platform has no device passing the class filter.
	ErrNoDevice = errors.New("no compute device found")

	// ErrReleased is returned when a released object is used.
	ErrReleased = errors.New("object already released")
)

// OpError is a failed device-API call: the operation name and, when the
// runtime reports one, its numeric status code.
type OpError struct {
	Op   string
	Code int
	Err  error
}

func (e *OpError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s returned %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// NewOpError wraps err for op. A nil err yields nil.
func NewOpError(op string, code int, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Code: code, Err: err}
}

// IndexError is an out-of-range platform or device ordinal.
type IndexError struct {
	What  string
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range (%d available)", e.What, e.Index, e.Count)
}
