package operation

// SlotKind tells whether a kernel argument slot holds a buffer or a scalar.
type SlotKind int

const (
	BufferSlot SlotKind = iota
	ScalarSlot
)

// Slot is one positional kernel argument.
type Slot struct {
	Index  int
	Name   string
	Kind   SlotKind
	Output bool
}

// Slot names used by the buffer manager and dispatcher.
const (
	SlotInput  = "input"
	SlotOutput = "output"
	SlotFactor = "factor"
	SlotA      = "a"
	SlotB      = "b"
	SlotC      = "c"
)

// Slots returns the fixed positional argument convention of k.
// The primary input is always slot 0.
func (k Kind) Slots() []Slot {
	switch k {
	case ScaledSum, DoubledSum, DoubledProduct:
		return []Slot{
			{Index: 0, Name: SlotInput, Kind: BufferSlot},
			{Index: 1, Name: SlotOutput, Kind: BufferSlot, Output: true},
			{Index: 2, Name: SlotFactor, Kind: ScalarSlot},
		}
	case Sum, Product:
		return []Slot{
			{Index: 0, Name: SlotA, Kind: BufferSlot},
			{Index: 1, Name: SlotB, Kind: BufferSlot},
			{Index: 2, Name: SlotC, Kind: BufferSlot, Output: true},
		}
	default:
		return nil
	}
}

// InputSlots returns the buffer slots the host writes, in slot order.
func (k Kind) InputSlots() []Slot {
	var inputs []Slot
	for _, s := range k.Slots() {
		if s.Kind == BufferSlot && !s.Output {
			inputs = append(inputs, s)
		}
	}
	return inputs
}

// OutputSlot returns the buffer slot the host reads back.
func (k Kind) OutputSlot() Slot {
	for _, s := range k.Slots() {
		if s.Output {
			return s
		}
	}
	return Slot{Index: -1}
}
