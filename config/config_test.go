package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/KernelHarness/operation"
	"github.com/notargets/KernelHarness/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolve_Defaults(t *testing.T) {
	testCases := []struct {
		file   string
		op     operation.Kind
		entry  string
		length int
		fill   utils.Fill
	}{
		{"saxpy.cl", operation.ScaledSum, "saxpy", DefaultScaledSumLength, utils.FillRandom},
		{"kernels/vecadd.cl", operation.Sum, "vecadd", DefaultElementLength, utils.FillSequence},
		{"kernels/vecmul.cl", operation.Product, "vecmul", DefaultElementLength, utils.FillSequence},
		{"dsum.cl", operation.DoubledSum, "dsum", DefaultScaledSumLength, utils.FillRandom},
		{"dmul.cl", operation.DoubledProduct, "dmul", DefaultScaledSumLength, utils.FillRandom},
	}
	for _, tc := range testCases {
		t.Run(tc.file, func(t *testing.T) {
			c := New()
			c.KernelFile = tc.file
			require.NoError(t, c.Resolve())
			assert.Equal(t, tc.op, c.Operation)
			assert.Equal(t, tc.entry, c.Entry)
			assert.Equal(t, tc.length, c.Length())
			assert.Equal(t, tc.fill, c.FillMode())
			assert.Equal(t, DefaultFactor, c.Factor)
			assert.False(t, c.Verify)
			assert.True(t, c.Profiling)
		})
	}
}

func TestResolve_Unrecognized(t *testing.T) {
	c := New()
	c.KernelFile = "kernel.cl"
	err := c.Resolve()
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.True(t, errors.Is(err, operation.ErrUnrecognized))

	c = New()
	assert.True(t, errors.Is(c.Resolve(), ErrInvalid), "missing kernel file")
}

func TestResolve_ExplicitOperation(t *testing.T) {
	c := New()
	c.KernelFile = "/opaque/path/mykernel.cl"
	c.OpName = "product"
	require.NoError(t, c.Resolve())
	assert.Equal(t, operation.Product, c.Operation)
	assert.Equal(t, "vecmul", c.Entry)

	c = New()
	c.KernelFile = "dsum.cl"
	c.OpName = "sum"
	c.Entry = "my_sum"
	require.NoError(t, c.Resolve())
	assert.Equal(t, "my_sum", c.Entry)

	c = New()
	c.KernelFile = "dsum.cl"
	c.OpName = "divide"
	assert.True(t, errors.Is(c.Resolve(), ErrInvalid))
}

func TestFromEnv(t *testing.T) {
	c := New()
	require.NoError(t, c.FromEnv(env(map[string]string{
		"VECTOR": "2", "CHECK": "1", "FACTOR": "3.0", "PLATFORM": "1", "DEVICE": "2", "POCL": "",
	})))
	c.KernelFile = "saxpy.cl"
	require.NoError(t, c.Resolve())
	assert.Equal(t, 2, c.Length())
	assert.True(t, c.Verify)
	assert.Equal(t, float32(3), c.Factor)
	assert.Equal(t, 1, c.Platform)
	assert.Equal(t, 2, c.Device)
	assert.True(t, c.PoclVerbose)

	c = New()
	require.NoError(t, c.FromEnv(env(map[string]string{"CHECK": "0", "VECTOR": "0"})))
	c.KernelFile = "vecadd.cl"
	require.NoError(t, c.Resolve())
	assert.False(t, c.Verify)
	assert.Equal(t, 0, c.Length(), "explicit zero length is kept")
}

func TestFromEnv_Invalid(t *testing.T) {
	for _, vars := range []map[string]string{
		{"VECTOR": "lots"}, {"CHECK": "yes"}, {"FACTOR": "pi"}, {"PLATFORM": "first"}, {"DEVICE": "1.5"},
	} {
		c := New()
		assert.True(t, errors.Is(c.FromEnv(env(vars)), ErrInvalid), "%v", vars)
	}

	c := New()
	require.NoError(t, c.FromEnv(env(map[string]string{"VECTOR": "-5"})))
	c.KernelFile = "saxpy.cl"
	assert.True(t, errors.Is(c.Resolve(), ErrInvalid), "negative length")
}

func TestValidate(t *testing.T) {
	base := New()
	base.KernelFile = "saxpy.cl"
	require.NoError(t, base.Resolve())

	for name, mutate := range map[string]func(*Config){
		"backend":   func(c *Config) { c.Backend = "" },
		"platform":  func(c *Config) { c.Platform = -1 },
		"device":    func(c *Config) { c.Device = -1 },
		"tolerance": func(c *Config) { c.Tolerance = -1 },
		"transfer":  func(c *Config) { c.Transfer = "dma" },
	} {
		c := base
		mutate(&c)
		assert.True(t, errors.Is(c.Validate(), ErrInvalid), name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: host
backend_config: devices=2
kernel_file: dsum.cl
vector_length: 16
verify: true
class: cpu
device: 1
transfer: element
fill: random
tolerance: 0.001
`), 0o644))

	c := New()
	require.NoError(t, c.Load(path))
	require.NoError(t, c.Resolve())
	assert.Equal(t, "host", c.Backend)
	assert.Equal(t, "devices=2", c.BackendConfig)
	assert.Equal(t, operation.DoubledSum, c.Operation)
	assert.Equal(t, 16, c.Length())
	assert.True(t, c.Verify)
	assert.Equal(t, device.ClassCPU, c.Class)
	assert.Equal(t, 1, c.Device)
	assert.Equal(t, TransferElement, c.Transfer)
	assert.Equal(t, utils.FillRandom, c.FillMode())
	assert.Equal(t, 0.001, c.Tolerance)
	assert.Equal(t, DefaultFactor, c.Factor, "untouched keys keep defaults")

	err := c.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "%v", err)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("vector_length: [1"), 0o644))
	assert.True(t, errors.Is(c.Load(bad), ErrInvalid))
}

func TestLoad_ExplicitZeroLength(t *testing.T) {
	dir := t.TempDir()
	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("kernel_file: saxpy.cl\nvector_length: 0\n"), 0o644))
	c := New()
	require.NoError(t, c.Load(zero))
	require.NoError(t, c.Resolve())
	assert.Equal(t, 0, c.Length(), "vector_length: 0 requests an empty run")

	unset := filepath.Join(dir, "unset.yaml")
	require.NoError(t, os.WriteFile(unset, []byte("kernel_file: saxpy.cl\n"), 0o644))
	c = New()
	require.NoError(t, c.Load(unset))
	require.NoError(t, c.Resolve())
	assert.Equal(t, DefaultScaledSumLength, c.Length())

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	c = New()
	c.Factor = 2
	require.NoError(t, c.Load(empty))
	assert.Equal(t, float32(2), c.Factor, "an empty file changes nothing")
}
