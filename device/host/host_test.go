package host

import (
	"testing"

	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const saxpySource = `
// y = a * x
__kernel void saxpy(__global const float *src, __global float *dst, float factor)
{
	long i = get_global_id(0);
	dst[i] = factor * src[i];
}
`

func newContext(t *testing.T, config string) (*API, device.Device, device.Context) {
	t.Helper()
	api, err := New(config)
	require.NoError(t, err)
	_, dev, err := device.Locate(api, 0, 0, device.ClassAny)
	require.NoError(t, err)
	ctx, err := dev.NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Release() })
	return api, dev, ctx
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("devices=3, global_mem=64KiB,compute_units=2,profiling=false")
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Devices)
	assert.Equal(t, int64(64*1024), opts.GlobalMem)
	assert.Equal(t, 2, opts.ComputeUnits)
	assert.False(t, opts.Profiling)

	for _, bad := range []string{"devices", "colour=red", "devices=x", "compute_units=0", "global_mem=lots"} {
		_, err := ParseOptions(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, device.Registered(), BackendName)
	api, err := device.Open(BackendName, "devices=2")
	require.NoError(t, err)
	platforms, err := device.ListPlatforms(api)
	require.NoError(t, err)
	devices, err := device.ListDevices(platforms[0], device.ClassAny)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	_, err = device.ListDevices(platforms[0], device.ClassGPU)
	assert.True(t, errors.Is(err, device.ErrNoDevice))
}

func TestBuild_Saxpy(t *testing.T) {
	_, _, ctx := newContext(t, "")
	prog, err := ctx.NewProgram(saxpySource)
	require.NoError(t, err)
	defer prog.Release()

	_, err = prog.NewKernel("saxpy")
	assert.Error(t, err, "kernel before build")

	require.NoError(t, prog.Build(""))
	k, err := prog.NewKernel("saxpy")
	require.NoError(t, err)
	assert.Equal(t, "saxpy", k.Name())
	require.NoError(t, k.Release())

	_, err = prog.NewKernel("saxpi")
	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, device.StatusInvalidKernelName, opErr.Code)
}

func TestBuild_Failures(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		want   string
	}{
		{"missingBrace", "__kernel void saxpy(__global float *a) {\n a[0] = 1;\n", "<source>:1:40: error: unmatched '{'"},
		{"strayParen", "__kernel void dsum(__global float *a))\n{}\n", "<source>:1:38: error: unexpected ')'"},
		{"unterminatedComment", "/* oops\n__kernel void dmul() {}", "unterminated /* comment"},
		{"unknownKernel", "__kernel void divide(__global float *a) {}", "kernel 'divide' has no host implementation"},
		{"noKernels", "float helper(float x) { return x; }", "no kernel entry points declared"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, ctx := newContext(t, "")
			prog, err := ctx.NewProgram(tc.source)
			require.NoError(t, err)
			err = prog.Build("")
			require.Error(t, err)

			var failure *device.BuildFailure
			require.True(t, errors.As(err, &failure))
			assert.Contains(t, failure.Log, tc.want)
			var opErr *device.OpError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, device.StatusBuildProgramFailure, opErr.Code)
		})
	}
}

func TestBuild_CommentedKernelIgnored(t *testing.T) {
	_, _, ctx := newContext(t, "")
	prog, err := ctx.NewProgram("// __kernel void divide() {}\n__kernel void copy(__global float *a, __global float *b) { b[0] = a[0]; }")
	require.NoError(t, err)
	require.NoError(t, prog.Build(""))
}

func TestDispatch_Saxpy(t *testing.T) {
	_, _, ctx := newContext(t, "compute_units=3")
	queue, err := ctx.NewQueue(true)
	require.NoError(t, err)
	defer queue.Release()

	prog, err := ctx.NewProgram(saxpySource)
	require.NoError(t, err)
	require.NoError(t, prog.Build(""))
	k, err := prog.NewKernel("saxpy")
	require.NoError(t, err)

	n := 10
	in, err := ctx.NewBuffer(n*4, device.ReadOnly)
	require.NoError(t, err)
	out, err := ctx.NewBuffer(n*4, device.WriteOnly)
	require.NoError(t, err)

	host := make([]float32, n)
	for i := range host {
		host[i] = float32(i)
	}
	require.NoError(t, queue.WriteFloat32(in, 0, host))
	require.NoError(t, k.SetArg(0, in))
	require.NoError(t, k.SetArg(1, out))
	require.NoError(t, k.SetArg(2, float32(2.5)))

	ev, err := queue.Enqueue(k, n)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	start, end, err := ev.Timestamps()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, end, start)
	require.NoError(t, ev.Release())

	result := make([]float32, n)
	require.NoError(t, queue.ReadFloat32(out, 0, result))
	for i := range result {
		assert.Equal(t, 2.5*float32(i), result[i])
	}
}

func TestDispatch_Doubled(t *testing.T) {
	_, _, ctx := newContext(t, "")
	queue, err := ctx.NewQueue(false)
	require.NoError(t, err)
	defer queue.Release()

	prog, err := ctx.NewProgram(`
__kernel void dsum(__global const float *in, __global float *out, const float factor)
{ out[get_global_id(0)] = in[get_global_id(0)] + in[get_global_id(0)]; }
__kernel void dmul(__global const float *in, __global float *out, const float factor)
{ out[get_global_id(0)] = 2.0f * in[get_global_id(0)]; }
`)
	require.NoError(t, err)
	require.NoError(t, prog.Build(""))

	in, err := ctx.NewBuffer(3*4, device.ReadOnly)
	require.NoError(t, err)
	out, err := ctx.NewBuffer(3*4, device.WriteOnly)
	require.NoError(t, err)
	require.NoError(t, queue.WriteFloat32(in, 0, []float32{1.5, 2, 40}))

	for _, entry := range []string{"dsum", "dmul"} {
		k, err := prog.NewKernel(entry)
		require.NoError(t, err)
		require.NoError(t, k.SetArg(0, in))
		require.NoError(t, k.SetArg(1, out))
		var opErr *device.OpError
		require.ErrorAs(t, k.SetArg(2, in), &opErr, "slot 2 of %s is the factor", entry)
		assert.Equal(t, device.StatusInvalidArgValue, opErr.Code)
		require.NoError(t, k.SetArg(2, float32(3.14)))

		ev, err := queue.Enqueue(k, 3)
		require.NoError(t, err)
		require.NoError(t, ev.Wait())
		require.NoError(t, ev.Release())

		result := make([]float32, 3)
		require.NoError(t, queue.ReadFloat32(out, 0, result))
		assert.Equal(t, []float32{3, 4, 80}, result, entry)
		require.NoError(t, k.Release())
	}
}

func TestKernelArgumentChecks(t *testing.T) {
	_, _, ctx := newContext(t, "")
	queue, err := ctx.NewQueue(false)
	require.NoError(t, err)
	prog, err := ctx.NewProgram(saxpySource)
	require.NoError(t, err)
	require.NoError(t, prog.Build(""))
	k, err := prog.NewKernel("saxpy")
	require.NoError(t, err)
	buf, err := ctx.NewBuffer(8, device.ReadOnly)
	require.NoError(t, err)

	assert.Error(t, k.SetArg(3, buf))
	assert.Error(t, k.SetArg(0, float32(1)))
	assert.Error(t, k.SetArg(2, 1.0))
	require.NoError(t, k.SetArg(0, buf))

	_, err = queue.Enqueue(k, 2)
	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr), "partially bound kernel")
	assert.Equal(t, device.StatusInvalidKernelArgs, opErr.Code)

	require.NoError(t, k.SetArg(1, buf))
	require.NoError(t, k.SetArg(2, float32(1)))
	_, err = queue.Enqueue(k, 3)
	require.True(t, errors.As(err, &opErr), "range larger than buffers")
	assert.Equal(t, device.StatusInvalidGlobalWorkSize, opErr.Code)

	_, err = queue.Enqueue(k, 0)
	assert.Error(t, err)

	ev, err := queue.Enqueue(k, 2)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	_, _, err = ev.Timestamps()
	assert.Error(t, err, "queue without profiling")
}

func TestBufferLimits(t *testing.T) {
	_, _, ctx := newContext(t, "global_mem=16B")
	_, err := ctx.NewBuffer(32, device.ReadOnly)
	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, device.StatusMemObjectAllocationFailure, opErr.Code)

	_, err = ctx.NewBuffer(0, device.ReadOnly)
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, device.StatusInvalidBufferSize, opErr.Code)

	buf, err := ctx.NewBuffer(16, device.ReadOnly)
	require.NoError(t, err)
	queue, err := ctx.NewQueue(false)
	require.NoError(t, err)
	assert.Error(t, queue.WriteFloat32(buf, 8, make([]float32, 3)))
	assert.NoError(t, queue.WriteFloat32(buf, 12, []float32{1}))
}

func TestProfilingUnsupported(t *testing.T) {
	_, _, ctx := newContext(t, "profiling=false")
	_, err := ctx.NewQueue(true)
	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, device.StatusInvalidQueueProperties, opErr.Code)
}

func TestReleaseIsIdempotent(t *testing.T) {
	api, _, ctx := newContext(t, "")
	var released []string
	api.ReleaseHook = func(kind string) { released = append(released, kind) }

	queue, err := ctx.NewQueue(true)
	require.NoError(t, err)
	buf, err := ctx.NewBuffer(4, device.WriteOnly)
	require.NoError(t, err)
	prog, err := ctx.NewProgram(saxpySource)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		assert.NoError(t, buf.Release())
		assert.NoError(t, prog.Release())
		assert.NoError(t, queue.Release())
		assert.NoError(t, ctx.Release())
	}
	assert.Equal(t, []string{"buffer", "program", "queue", "context"}, released)

	var nilBuf *Buffer
	assert.NoError(t, nilBuf.Release())
	_, err = ctx.NewBuffer(4, device.ReadOnly)
	assert.True(t, errors.Is(err, device.ErrReleased))
}
