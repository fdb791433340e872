package operation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name  string
		file  string
		kind  Kind
		entry string
	}{
		{"saxpy", "saxpy.cl", ScaledSum, "saxpy"},
		{"saxpyWithSuffix", "saxpy_float.cl", ScaledSum, "saxpy"},
		{"vecadd", "vecadd.cl", Sum, "vecadd"},
		{"vecmul", "vecmulKernel.cl", Product, "vecmul"},
		{"dsum", "dsum.cl", DoubledSum, "dsum"},
		{"dmul", "dmul.cl", DoubledProduct, "dmul"},
		{"pathIsOpaque", "/tmp/kernels/saxpy.cl", ScaledSum, "saxpy"},
		{"directoryNameIgnored", "vecadd/dmul.cl", DoubledProduct, "dmul"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kind, entry, err := Classify(tc.file)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.entry, entry)
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	for _, file := range []string{"kernel.cl", "", "sax.cl", "SAXPY.cl", "add.cl", "saxpy/kernel.cl"} {
		kind, _, err := Classify(file)
		assert.Equal(t, Unknown, kind, file)
		assert.True(t, errors.Is(err, ErrUnrecognized), "file %q: %v", file, err)
	}
}

func TestParse(t *testing.T) {
	for name, want := range map[string]Kind{
		"saxpy": ScaledSum, "sum": Sum, "product": Product,
		"vecadd": Sum, "vecmul": Product, "DMUL": DoubledProduct, " dsum ": DoubledSum,
		"doubled-sum": DoubledSum, "doubled-product": DoubledProduct,
	} {
		got, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := Parse("divide")
	assert.True(t, errors.Is(err, ErrUnrecognized))
}

func TestSlots_PrimaryInputFirst(t *testing.T) {
	for _, k := range []Kind{ScaledSum, Sum, Product, DoubledSum, DoubledProduct} {
		slots := k.Slots()
		require.Len(t, slots, 3, k.String())
		assert.Equal(t, 0, slots[0].Index)
		assert.Equal(t, BufferSlot, slots[0].Kind)
		assert.False(t, slots[0].Output)
		for i, s := range slots {
			assert.Equal(t, i, s.Index, "%s slot %s", k, s.Name)
		}
		assert.Len(t, k.InputSlots(), k.NumInputs())
	}
	assert.Equal(t, 1, ScaledSum.OutputSlot().Index)
	assert.Equal(t, ScalarSlot, ScaledSum.Slots()[2].Kind)
	assert.Equal(t, 2, Sum.OutputSlot().Index)
	assert.Equal(t, -1, Unknown.OutputSlot().Index)
}

func TestSlots_DoubledVariantsUseScaledSumConvention(t *testing.T) {
	for _, k := range []Kind{DoubledSum, DoubledProduct} {
		assert.Equal(t, ScaledSum.Slots(), k.Slots(), k.String())
		assert.Equal(t, 1, k.NumInputs(), k.String())
		assert.True(t, k.Scaled(), k.String())
	}
	assert.True(t, ScaledSum.Scaled())
	assert.False(t, Sum.Scaled())
	assert.False(t, Product.Scaled())
}

func TestSlots_StableAcrossCalls(t *testing.T) {
	first := Product.Slots()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Product.Slots())
	}
	assert.Equal(t, SlotA, first[0].Name)
	assert.Equal(t, SlotB, first[1].Name)
}

func TestExpected(t *testing.T) {
	assert.Equal(t, float32(30), ScaledSum.Expected([][]float32{{2, 10}}, 3, 1))
	assert.Equal(t, float32(9), Sum.Expected([][]float32{{1, 2, 3}, {2, 4, 6}}, 0, 2))
	assert.Equal(t, float32(20), Product.Expected([][]float32{{1, 2, 3}, {10, 10, 10}}, 0, 1))
	assert.Equal(t, float32(7), DoubledSum.Expected([][]float32{{3.5}}, 3.14, 0))
	assert.Equal(t, float32(7), DoubledProduct.Expected([][]float32{{3.5}}, 3.14, 0))
	assert.Panics(t, func() { Unknown.Expected(nil, 0, 0) })
}
