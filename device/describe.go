package device

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// DescribePlatform prints the capability strings of p.
func DescribePlatform(w io.Writer, index int, p Platform) {
	fmt.Fprintf(w, "  -- %d --\n", index)
	fmt.Fprintf(w, "  PROFILE = %s\n", p.Profile())
	fmt.Fprintf(w, "  VERSION = %s\n", p.Version())
	fmt.Fprintf(w, "  NAME = %s\n", p.Name())
	fmt.Fprintf(w, "  VENDOR = %s\n", p.Vendor())
	fmt.Fprintf(w, "  EXTENSIONS = %s\n", p.Extensions())
}

// DescribeDevice prints the capabilities of d.
func DescribeDevice(w io.Writer, index int, d Device) {
	fmt.Fprintf(w, "  -- %d --\n", index)
	fmt.Fprintf(w, "  DEVICE_NAME = %s\n", d.Name())
	fmt.Fprintf(w, "  DEVICE_VENDOR = %s\n", d.Vendor())
	fmt.Fprintf(w, "  DEVICE_VERSION = %s\n", d.Version())
	fmt.Fprintf(w, "  DRIVER_VERSION = %s\n", d.DriverVersion())
	fmt.Fprintf(w, "  DEVICE_CLASS = %s\n", d.Class())
	fmt.Fprintf(w, "  DEVICE_MAX_COMPUTE_UNITS = %d\n", d.MaxComputeUnits())
	fmt.Fprintf(w, "  DEVICE_MAX_CLOCK_FREQUENCY = %d\n", d.MaxClockFrequency())
	fmt.Fprintf(w, "  DEVICE_GLOBAL_MEM_SIZE = %s\n", humanize.IBytes(uint64(max(d.GlobalMemSize(), 0))))
	fmt.Fprintf(w, "  DEVICE_MAX_WORK_GROUP_SIZE = %d\n", d.MaxWorkGroupSize())
	fmt.Fprintf(w, "  DEVICE_MAX_WORK_ITEM_SIZES = %v\n", d.MaxWorkItemSizes())
}

// Describe prints every platform of api and the devices passing class.
func Describe(w io.Writer, api API, class Class) error {
	platforms, err := ListPlatforms(api)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "=== %d %s platform(s) found: ===\n", len(platforms), api.Name())
	for i, p := range platforms {
		DescribePlatform(w, i, p)
	}
	for i, p := range platforms {
		devices, err := p.Devices(class)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "=== %d device(s) found on platform %d:\n", len(devices), i)
		for j, d := range devices {
			DescribeDevice(w, j, d)
		}
	}
	return nil
}
