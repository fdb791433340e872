package occa

import (
	"testing"

	"github.com/notargets/KernelHarness/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const saxpySource = `
@kernel void saxpy(const float *input, float *output, const float factor, const int n) {
	for (int i = 0; i < n; ++i; @tile(64, @outer, @inner)) {
		output[i] = input[i] * factor;
	}
}
`

func TestNew(t *testing.T) {
	assert.Equal(t, []string{"OpenMP", "CUDA", "Serial"}, New("").Modes)
	assert.Equal(t, []string{"Serial", "OpenMP"}, New(" Serial, OpenMP ,").Modes)
	assert.Contains(t, device.Registered(), BackendName)

	d := &Device{mode: "CUDA"}
	assert.Equal(t, device.ClassGPU, d.Class())
	assert.Zero(t, d.GlobalMemSize())
	d = &Device{mode: "Serial"}
	assert.Equal(t, device.ClassCPU, d.Class())
	assert.Equal(t, 1, d.MaxComputeUnits())
}

// serialDevice skips the test when OCCA cannot open a Serial device.
func serialDevice(t *testing.T) device.Device {
	t.Helper()
	_, dev, err := device.Locate(New("Serial"), 0, 0, device.ClassAny)
	if err != nil {
		t.Skipf("OCCA Serial mode unavailable: %v", err)
	}
	return dev
}

func TestSaxpy(t *testing.T) {
	dev := serialDevice(t)
	ctx, err := dev.NewContext()
	require.NoError(t, err)
	defer ctx.Release()
	queue, err := ctx.NewQueue(true)
	require.NoError(t, err)
	defer queue.Release()

	program, err := ctx.NewProgram(saxpySource)
	require.NoError(t, err)
	defer program.Release()
	require.NoError(t, program.Build(""))

	_, err = program.NewKernel("vecadd")
	var opErr *device.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, device.StatusInvalidKernelName, opErr.Code)

	kernel, err := program.NewKernel("saxpy")
	require.NoError(t, err)
	defer kernel.Release()

	const n = 100
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(i)
	}
	inBuf, err := ctx.NewBuffer(4*n, device.ReadOnly)
	require.NoError(t, err)
	defer inBuf.Release()
	outBuf, err := ctx.NewBuffer(4*n, device.WriteOnly)
	require.NoError(t, err)
	defer outBuf.Release()

	require.NoError(t, queue.WriteFloat32(inBuf, 0, in))
	require.NoError(t, kernel.SetArg(0, inBuf))
	require.NoError(t, kernel.SetArg(1, outBuf))
	_, err = queue.Enqueue(kernel, n)
	assert.Error(t, err, "factor is unbound")
	require.NoError(t, kernel.SetArg(2, float32(2)))

	ev, err := queue.Enqueue(kernel, n)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	start, end, err := ev.Timestamps()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, end, start)

	out := make([]float32, n)
	require.NoError(t, queue.ReadFloat32(outBuf, 0, out))
	for i := range out {
		assert.Equal(t, 2*in[i], out[i])
	}

	// Element-wise transfers use byte offsets.
	require.NoError(t, queue.ReadFloat32(outBuf, 4*10, out[:1]))
	assert.Equal(t, float32(20), out[0])
}

func TestBuildFailure(t *testing.T) {
	dev := serialDevice(t)
	ctx, err := dev.NewContext()
	require.NoError(t, err)
	defer ctx.Release()

	program, err := ctx.NewProgram("__kernel void saxpy(__global float *a) {}")
	require.NoError(t, err)
	err = program.Build("")
	var failure *device.BuildFailure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Log, "no @kernel")
}

func TestDeviceProps(t *testing.T) {
	assert.JSONEq(t, `{"mode": "Serial"}`, DeviceProps("Serial"))
	assert.JSONEq(t, `{"mode": "CUDA", "device_id": 0}`, DeviceProps("CUDA"))
	assert.JSONEq(t, `{"mode": "OpenCL", "platform_id": 0, "device_id": 0}`, DeviceProps("OpenCL"))
}
