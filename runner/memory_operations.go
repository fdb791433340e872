package runner

import (
	"github.com/notargets/KernelHarness/config"
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrAccessMode is a transfer against a buffer's only legal direction:
// read-only buffers are written by the host, write-only buffers are read.
var ErrAccessMode = errors.New("transfer direction does not match buffer access mode")

// BufferManager owns the device buffers of a run, keyed by operand name.
type BufferManager struct {
	ec       *ExecutionContext
	Transfer config.TransferMode
	buffers  map[string]device.Buffer
	lengths  map[string]int
	order    []string
}

// NewBufferManager stages transfers through the queue of ec.
func NewBufferManager(ec *ExecutionContext, transfer config.TransferMode) *BufferManager {
	return &BufferManager{
		ec:       ec,
		Transfer: transfer,
		buffers:  make(map[string]device.Buffer),
		lengths:  make(map[string]int),
	}
}

// Allocate creates a device buffer of length float32 elements.
func (bm *BufferManager) Allocate(name string, length int, mode device.AccessMode) (device.Buffer, error) {
	if _, exists := bm.buffers[name]; exists {
		return nil, errors.Errorf("buffer %s already allocated", name)
	}
	if length <= 0 {
		return nil, errors.Errorf("buffer %s: invalid length %d", name, length)
	}
	klog.V(1).Infof("Allocating %s buffer %s (%d elements)", mode, name, length)
	buf, err := bm.ec.Context.NewBuffer(length*Float32Size, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating buffer %s", name)
	}
	bm.buffers[name] = buf
	bm.lengths[name] = length
	bm.order = append(bm.order, name)
	return buf, nil
}

// Buffer returns the named buffer, or nil.
func (bm *BufferManager) Buffer(name string) device.Buffer {
	return bm.buffers[name]
}

// Names lists the allocated buffers in allocation order.
func (bm *BufferManager) Names() []string {
	return append([]string(nil), bm.order...)
}

func (bm *BufferManager) lookup(name string, mode device.AccessMode, n int) (device.Buffer, error) {
	buf, exists := bm.buffers[name]
	if !exists {
		return nil, errors.Errorf("no device memory allocated for %s", name)
	}
	if buf.Mode() != mode {
		return nil, errors.Wrapf(ErrAccessMode, "buffer %s is %s", name, buf.Mode())
	}
	if n != bm.lengths[name] {
		return nil, errors.Errorf("buffer %s holds %d elements, host vector has %d", name, bm.lengths[name], n)
	}
	return buf, nil
}

// Write copies data into the read-only buffer name. It returns once the
// transfer is complete.
func (bm *BufferManager) Write(name string, data []float32) error {
	buf, err := bm.lookup(name, device.ReadOnly, len(data))
	if err != nil {
		return err
	}
	if bm.Transfer == config.TransferElement {
		for i := range data {
			if err := bm.ec.Queue.WriteFloat32(buf, i*Float32Size, data[i:i+1]); err != nil {
				return errors.Wrapf(err, "failed to copy %s[%d] to device", name, i)
			}
		}
		return nil
	}
	return errors.Wrapf(bm.ec.Queue.WriteFloat32(buf, 0, data), "failed to copy %s to device", name)
}

// Read copies the write-only buffer name into data. It returns once the
// transfer is complete.
func (bm *BufferManager) Read(name string, data []float32) error {
	buf, err := bm.lookup(name, device.WriteOnly, len(data))
	if err != nil {
		return err
	}
	if bm.Transfer == config.TransferElement {
		for i := range data {
			if err := bm.ec.Queue.ReadFloat32(buf, i*Float32Size, data[i:i+1]); err != nil {
				return errors.Wrapf(err, "failed to copy %s[%d] from device", name, i)
			}
		}
		return nil
	}
	return errors.Wrapf(bm.ec.Queue.ReadFloat32(buf, 0, data), "failed to copy %s from device", name)
}

// Free releases every buffer, newest first. Calling it again is a no-op.
func (bm *BufferManager) Free() error {
	if bm == nil {
		return nil
	}
	var first error
	for i := len(bm.order) - 1; i >= 0; i-- {
		name := bm.order[i]
		if err := bm.buffers[name].Release(); err != nil {
			klog.Warningf("failed to release buffer %s: %v", name, err)
			if first == nil {
				first = errors.Wrapf(err, "releasing buffer %s", name)
			}
		}
		delete(bm.buffers, name)
		delete(bm.lengths, name)
	}
	bm.order = nil
	return first
}
