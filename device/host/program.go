package host

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var kernelDecl = regexp.MustCompile(`\b(?:__kernel|kernel)\s+void\s+([A-Za-z_]\w*)\s*\(`)

// Program is host "compiled" source: the entry points it declares, each bound
// to a built-in implementation.
type Program struct {
	ctx      *Context
	source   string
	entries  map[string]*builtin
	built    bool
	released bool
}

// Build implements device.Program. It checks the source lexically and binds
// every declared entry point; problems are reported in a compiler-style log.
func (p *Program) Build(options string) error {
	if p.released {
		return device.NewOpError("Build", device.StatusInvalidProgram, device.ErrReleased)
	}
	if options != "" {
		klog.V(2).Infof("host backend ignores build options %q", options)
	}
	var diags []string
	stripped, lexDiags := stripComments(p.source)
	diags = append(diags, lexDiags...)
	diags = append(diags, checkBalance(stripped)...)

	entries := make(map[string]*builtin)
	for _, m := range kernelDecl.FindAllStringSubmatchIndex(stripped, -1) {
		name := stripped[m[2]:m[3]]
		impl, ok := builtins[name]
		if !ok {
			line, col := position(stripped, m[2])
			diags = append(diags, fmt.Sprintf("<source>:%d:%d: error: kernel '%s' has no host implementation", line, col, name))
			continue
		}
		entries[name] = impl
	}
	if len(entries) == 0 && len(diags) == 0 {
		diags = append(diags, "<source>:1:1: error: no kernel entry points declared")
	}
	if len(diags) > 0 {
		return device.NewOpError("Build", device.StatusBuildProgramFailure, &device.BuildFailure{
			Device: p.ctx.dev.Name(),
			Log:    strings.Join(diags, "\n") + "\n",
		})
	}
	p.entries = entries
	p.built = true
	return nil
}

// NewKernel implements device.Program.
func (p *Program) NewKernel(entry string) (device.Kernel, error) {
	if p.released || !p.built {
		return nil, device.NewOpError("NewKernel", device.StatusInvalidProgramExecutable,
			errors.New("program is not built"))
	}
	impl, ok := p.entries[entry]
	if !ok {
		return nil, device.NewOpError("NewKernel", device.StatusInvalidKernelName,
			errors.Errorf("no kernel named %q in program", entry))
	}
	return &Kernel{api: p.ctx.dev.api, name: entry, impl: impl, args: make([]arg, len(impl.sig))}, nil
}

// Release implements device.Program.
func (p *Program) Release() error {
	if p == nil || p.released {
		return nil
	}
	p.released = true
	p.entries = nil
	p.ctx.dev.api.released("program")
	return nil
}

// stripComments blanks comments out, keeping offsets and newlines intact.
func stripComments(src string) (string, []string) {
	out := []byte(src)
	var diags []string
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			start := i
			closed := false
			for ; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					closed = true
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
			if !closed {
				line, col := position(src, start)
				diags = append(diags, fmt.Sprintf("<source>:%d:%d: error: unterminated /* comment", line, col))
			}
		}
	}
	return string(out), diags
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

func checkBalance(src string) []string {
	type open struct {
		ch  byte
		pos int
	}
	var stack []open
	var diags []string
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch ch {
		case '(', '[', '{':
			stack = append(stack, open{ch, i})
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != closers[ch] {
				line, col := position(src, i)
				diags = append(diags, fmt.Sprintf("<source>:%d:%d: error: unexpected '%c'", line, col, ch))
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}
	for _, o := range stack {
		line, col := position(src, o.pos)
		diags = append(diags, fmt.Sprintf("<source>:%d:%d: error: unmatched '%c'", line, col, o.ch))
	}
	return diags
}

func position(src string, offset int) (line, col int) {
	line = 1 + strings.Count(src[:offset], "\n")
	col = offset - strings.LastIndex(src[:offset], "\n")
	return
}
