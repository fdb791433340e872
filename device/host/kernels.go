package host

import (
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type argKind int

const (
	argBuffer argKind = iota
	argFloat
)

type arg struct {
	set bool
	buf *Buffer
	f   float32
}

// builtin is the host implementation of one kernel entry point.
type builtin struct {
	sig  []argKind
	item func(i int, args []arg)
}

var builtins = map[string]*builtin{
	"saxpy":  scaled(func(x, factor float32) float32 { return x * factor }),
	"dsum":   scaled(func(x, _ float32) float32 { return x + x }),
	"dmul":   scaled(func(x, _ float32) float32 { return 2 * x }),
	"vecadd": elementwise(func(x, y float32) float32 { return x + y }),
	"vecmul": elementwise(func(x, y float32) float32 { return x * y }),
	"copy": {
		sig: []argKind{argBuffer, argBuffer},
		item: func(i int, a []arg) {
			a[1].buf.data[i] = a[0].buf.data[i]
		},
	},
}

// scaled binds (input, output, factor).
func scaled(f func(x, factor float32) float32) *builtin {
	return &builtin{
		sig: []argKind{argBuffer, argBuffer, argFloat},
		item: func(i int, a []arg) {
			a[1].buf.data[i] = f(a[0].buf.data[i], a[2].f)
		},
	}
}

func elementwise(f func(x, y float32) float32) *builtin {
	return &builtin{
		sig: []argKind{argBuffer, argBuffer, argBuffer},
		item: func(i int, a []arg) {
			a[2].buf.data[i] = f(a[0].buf.data[i], a[1].buf.data[i])
		},
	}
}

// Kernel is one bound host entry point.
type Kernel struct {
	api      *API
	name     string
	impl     *builtin
	args     []arg
	released bool
}

func (k *Kernel) Name() string { return k.name }

// SetArg implements device.Kernel.
func (k *Kernel) SetArg(index int, value any) error {
	if k.released {
		return device.NewOpError("SetArg", device.StatusInvalidKernel, device.ErrReleased)
	}
	if index < 0 || index >= len(k.args) {
		return device.NewOpError("SetArg", device.StatusInvalidArgIndex,
			errors.Errorf("kernel %s has %d arguments, got index %d", k.name, len(k.args), index))
	}
	switch k.impl.sig[index] {
	case argBuffer:
		b, ok := value.(*Buffer)
		if !ok || b == nil || b.data == nil {
			return device.NewOpError("SetArg", device.StatusInvalidMemObject,
				errors.Errorf("argument %d of %s must be a live host buffer, got %T", index, k.name, value))
		}
		k.args[index] = arg{set: true, buf: b}
	case argFloat:
		f, ok := value.(float32)
		if !ok {
			return device.NewOpError("SetArg", device.StatusInvalidArgValue,
				errors.Errorf("argument %d of %s must be float32, got %T", index, k.name, value))
		}
		k.args[index] = arg{set: true, f: f}
	}
	return nil
}

// resolve snapshots the bound arguments for a dispatch of n work items.
func (k *Kernel) resolve(n int) ([]arg, error) {
	args := make([]arg, len(k.args))
	for i, a := range k.args {
		if !a.set {
			return nil, device.NewOpError("Enqueue", device.StatusInvalidKernelArgs,
				errors.Errorf("argument %d of %s is not set", i, k.name))
		}
		if a.buf != nil {
			if a.buf.data == nil {
				return nil, device.NewOpError("Enqueue", device.StatusInvalidMemObject,
					errors.Errorf("argument %d of %s was released", i, k.name))
			}
			if len(a.buf.data) < n {
				return nil, device.NewOpError("Enqueue", device.StatusInvalidGlobalWorkSize,
					errors.Errorf("global work size %d exceeds argument %d of %d elements", n, i, len(a.buf.data)))
			}
		}
		args[i] = a
	}
	return args, nil
}

// Release implements device.Kernel.
func (k *Kernel) Release() error {
	if k == nil || k.released {
		return nil
	}
	k.released = true
	k.api.released("kernel")
	return nil
}

// execute runs work items [0, n) split in contiguous chunks over workers goroutines.
func execute(impl *builtin, args []arg, n, workers int) error {
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("work items [%d, %d): %v", lo, hi, r)
				}
			}()
			for i := lo; i < hi; i++ {
				impl.item(i, args)
			}
			return nil
		})
	}
	return device.NewOpError("execute", device.StatusOutOfResources, g.Wait())
}
