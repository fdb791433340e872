// Package config holds the run configuration. It is built once at start-up
// and passed to every component; nothing below cmd reads the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/KernelHarness/operation"
	"github.com/notargets/KernelHarness/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration errors; they are detected before any device
// resource is acquired.
var ErrInvalid = errors.New("invalid configuration")

// invalid marks err as a configuration error while keeping it unwrappable.
type invalid struct{ err error }

func (e invalid) Error() string        { return ErrInvalid.Error() + ": " + e.err.Error() }
func (e invalid) Unwrap() error        { return e.err }
func (e invalid) Is(target error) bool { return target == ErrInvalid }

// TransferMode selects how buffers are staged.
type TransferMode string

const (
	// TransferBlock moves a whole vector in one blocking transfer.
	TransferBlock TransferMode = "block"
	// TransferElement moves one element per blocking transfer.
	TransferElement TransferMode = "element"
)

// Defaults
const (
	DefaultFactor          = float32(3.14)
	DefaultScaledSumLength = 65536
	DefaultElementLength   = 1024
	DefaultBackend         = "opencl"
)

// Config is one run of the harness.
type Config struct {
	Backend       string `yaml:"backend"`
	BackendConfig string `yaml:"backend_config"`

	KernelFile string         `yaml:"kernel_file"`
	Operation  operation.Kind `yaml:"-"`
	OpName     string         `yaml:"operation"`
	Entry      string         `yaml:"entry"`

	// VectorLength of zero means the per-operation default; use Length() to read it.
	VectorLength int     `yaml:"vector_length"`
	Verify       bool    `yaml:"verify"`
	Strict       bool    `yaml:"strict"`
	Factor       float32 `yaml:"factor"`
	Tolerance    float64 `yaml:"tolerance"`

	Platform    int          `yaml:"platform"`
	Device      int          `yaml:"device"`
	Class       device.Class `yaml:"-"`
	ClassName   string       `yaml:"class"`
	Profiling   bool         `yaml:"profiling"`
	BuildOpts   string       `yaml:"build_options"`
	Transfer    TransferMode `yaml:"transfer"`
	Fill        utils.Fill   `yaml:"-"`
	FillName    string       `yaml:"fill"`
	Seed        uint64       `yaml:"seed"`
	PoclVerbose bool         `yaml:"pocl"`

	lengthSet bool
	fillSet   bool
}

// New returns the defaults shared by every operation.
func New() Config {
	return Config{
		Backend:   DefaultBackend,
		Factor:    DefaultFactor,
		Profiling: true,
		Transfer:  TransferBlock,
		Seed:      1,
	}
}

// SetLength fixes the vector length, overriding the per-operation default.
func (c *Config) SetLength(n int) {
	c.VectorLength = n
	c.lengthSet = true
}

// SetFill fixes the fill, overriding the per-operation default.
func (c *Config) SetFill(f utils.Fill) {
	c.Fill = f
	c.FillName = f.String()
	c.fillSet = true
}

// Length is the configured vector length, or the operation's default.
func (c *Config) Length() int {
	if c.lengthSet || c.VectorLength != 0 {
		return c.VectorLength
	}
	if c.Operation.Scaled() {
		return DefaultScaledSumLength
	}
	return DefaultElementLength
}

// FillMode is the configured fill, or the operation's default: random for
// the single-input variants, the deterministic sequence otherwise.
func (c *Config) FillMode() utils.Fill {
	if c.fillSet {
		return c.Fill
	}
	if c.Operation.Scaled() {
		return utils.FillRandom
	}
	return utils.FillSequence
}

// Resolve classifies the kernel file (unless an operation was given
// explicitly), fills the entry point, parses the names and validates.
func (c *Config) Resolve() error {
	if c.KernelFile == "" {
		return errors.Wrap(ErrInvalid, "usage: <kernel file.cl>")
	}
	if c.OpName != "" {
		kind, err := operation.Parse(c.OpName)
		if err != nil {
			return invalid{err}
		}
		c.Operation = kind
	}
	if c.Operation == operation.Unknown {
		kind, entry, err := operation.Classify(c.KernelFile)
		if err != nil {
			return invalid{err}
		}
		c.Operation = kind
		if c.Entry == "" {
			c.Entry = entry
		}
	}
	if c.Entry == "" {
		if _, entry, err := operation.Classify(c.KernelFile); err == nil {
			c.Entry = entry
		} else {
			c.Entry = c.Operation.DefaultEntry()
		}
	}
	if c.ClassName != "" {
		class, err := device.ParseClass(c.ClassName)
		if err != nil {
			return invalid{err}
		}
		c.Class = class
	}
	if c.FillName != "" && !c.fillSet {
		fill, err := utils.ParseFill(c.FillName)
		if err != nil {
			return invalid{err}
		}
		c.SetFill(fill)
	}
	return c.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Backend == "":
		return errors.Wrap(ErrInvalid, "no backend")
	case c.VectorLength < 0:
		return errors.Wrapf(ErrInvalid, "negative vector length %d", c.VectorLength)
	case c.Platform < 0:
		return errors.Wrapf(ErrInvalid, "negative platform index %d", c.Platform)
	case c.Device < 0:
		return errors.Wrapf(ErrInvalid, "negative device index %d", c.Device)
	case c.Tolerance < 0:
		return errors.Wrapf(ErrInvalid, "negative tolerance %g", c.Tolerance)
	case c.Transfer != TransferBlock && c.Transfer != TransferElement:
		return errors.Wrapf(ErrInvalid, "unknown transfer mode %q (want block or element)", c.Transfer)
	}
	return nil
}

// Load reads a YAML configuration file on top of c. A vector_length key
// present in the file is kept even when it is 0.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return invalid{errors.Wrap(err, "reading config")}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return invalid{errors.Wrapf(err, "parsing config %s", path)}
	}
	if doc.Kind == 0 {
		return nil
	}
	if err := doc.Decode(c); err != nil {
		return invalid{errors.Wrapf(err, "parsing config %s", path)}
	}
	if hasKey(&doc, "vector_length") {
		c.lengthSet = true
	}
	return nil
}

func hasKey(doc *yaml.Node, key string) bool {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return false
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

// FromEnv applies the VECTOR, CHECK, FACTOR, PLATFORM, DEVICE and POCL
// variables through lookup (os.LookupEnv in production).
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("VECTOR"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalid, "VECTOR=%q: %v", v, err)
		}
		c.SetLength(n)
	}
	if v, ok := lookup("CHECK"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalid, "CHECK=%q: %v", v, err)
		}
		c.Verify = n > 0
	}
	if v, ok := lookup("FACTOR"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "FACTOR=%q: %v", v, err)
		}
		c.Factor = float32(f)
	}
	for _, idx := range []struct {
		name string
		dst  *int
	}{{"PLATFORM", &c.Platform}, {"DEVICE", &c.Device}} {
		if v, ok := lookup(idx.name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(ErrInvalid, "%s=%q: %v", idx.name, v, err)
			}
			*idx.dst = n
		}
	}
	if _, ok := lookup("POCL"); ok {
		c.PoclVerbose = true
	}
	return nil
}

// PoclEnvironment is the set of variables that make POCL verbose and keep
// its temporary files.
var PoclEnvironment = map[string]string{
	"POCL_VERBOSE":                          "1",
	"POCL_DEVICES":                          "basic",
	"POCL_LEAVE_TEMP_DIRS":                  "1",
	"POCL_LEAVE_KERNEL_COMPILER_TEMP_FILES": "1",
	"POCL_TEMP_DIR":                         "pocl",
	"POCL_CACHE_DIR":                        "pocl",
	"POCL_WORK_GROUP_METHOD":                "spmd",
}
