package runner

import (
	"github.com/notargets/KernelHarness/operation"
	"github.com/pkg/errors"
)

// KernelArgument is one positional kernel argument resolved for a run.
type KernelArgument struct {
	Slot  operation.Slot
	Value any // device.Buffer or float32
}

// GetKernelArguments resolves the argument list of op against the allocated
// buffers. This is the single source of truth for argument ordering: slot 0
// is always the primary input and each operand binds to the same index on
// every call.
func (bm *BufferManager) GetKernelArguments(op operation.Kind, factor float32) ([]KernelArgument, error) {
	slots := op.Slots()
	if len(slots) == 0 {
		return nil, errors.Errorf("operation %s has no argument convention", op)
	}
	args := make([]KernelArgument, 0, len(slots))
	for _, slot := range slots {
		switch slot.Kind {
		case operation.BufferSlot:
			buf := bm.Buffer(slot.Name)
			if buf == nil {
				return nil, errors.Errorf("device buffer %s not found for slot %d", slot.Name, slot.Index)
			}
			args = append(args, KernelArgument{Slot: slot, Value: buf})
		case operation.ScalarSlot:
			args = append(args, KernelArgument{Slot: slot, Value: factor})
		}
	}
	return args, nil
}
