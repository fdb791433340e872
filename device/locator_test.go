package device_test

import (
	"bytes"
	"testing"

	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/KernelHarness/device/host"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyAPI is a backend without platforms.
type emptyAPI struct{}

func (emptyAPI) Name() string                          { return "empty" }
func (emptyAPI) Platforms() ([]device.Platform, error) { return nil, nil }

func TestParseClass(t *testing.T) {
	for name, want := range map[string]device.Class{
		"": device.ClassAny, "all": device.ClassAny, "any": device.ClassAny,
		"CPU": device.ClassCPU, "gpu": device.ClassGPU, " accelerator ": device.ClassAccelerator,
	} {
		got, err := device.ParseClass(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := device.ParseClass("fpga")
	assert.Error(t, err)

	assert.True(t, device.ClassAny.Matches(device.ClassGPU))
	assert.True(t, device.ClassCPU.Matches(device.ClassCPU))
	assert.False(t, device.ClassGPU.Matches(device.ClassCPU))
}

func TestListPlatforms_Empty(t *testing.T) {
	_, err := device.ListPlatforms(emptyAPI{})
	assert.True(t, errors.Is(err, device.ErrNoPlatform))
}

func TestLocate(t *testing.T) {
	api, err := host.New("devices=2")
	require.NoError(t, err)

	platform, dev, err := device.Locate(api, 0, 1, device.ClassAny)
	require.NoError(t, err)
	assert.Equal(t, "Host Reference Platform", platform.Name())
	assert.Equal(t, "Host Reference Device 1", dev.Name())

	testCases := []struct {
		name            string
		platform, index int
		what            string
	}{
		{"platformTooLarge", 1, 0, "platform"},
		{"platformNegative", -1, 0, "platform"},
		{"deviceTooLarge", 0, 2, "device"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := device.Locate(api, tc.platform, tc.index, device.ClassAny)
			var idxErr *device.IndexError
			require.True(t, errors.As(err, &idxErr), "%v", err)
			assert.Equal(t, tc.what, idxErr.What)
		})
	}

	_, _, err = device.Locate(api, 0, 0, device.ClassGPU)
	assert.True(t, errors.Is(err, device.ErrNoDevice))
}

func TestOpen_Unknown(t *testing.T) {
	_, err := device.Open("cuda-but-not-really", "")
	assert.Error(t, err)
}

func TestOpError(t *testing.T) {
	assert.Nil(t, device.NewOpError("clFinish", -36, nil))
	err := device.NewOpError("clCreateBuffer", device.StatusMemObjectAllocationFailure, errors.New("out of memory"))
	assert.Equal(t, "clCreateBuffer returned -4: out of memory", err.Error())
	err = device.NewOpError("CopyTo", 0, errors.New("boom"))
	assert.Equal(t, "CopyTo: boom", err.Error())
}

func TestDescribe(t *testing.T) {
	api, err := host.New("global_mem=2GiB")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, device.Describe(&buf, api, device.ClassAny))
	out := buf.String()
	assert.Contains(t, out, "=== 1 host platform(s) found: ===")
	assert.Contains(t, out, "DEVICE_NAME = Host Reference Device 0")
	assert.Contains(t, out, "DEVICE_GLOBAL_MEM_SIZE = 2.0 GiB")
	assert.Contains(t, out, "DEVICE_CLASS = cpu")
}
