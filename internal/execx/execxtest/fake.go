// Package execxtest provides a scripted execx.Runner for tests.
package execxtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/goplus/magicksys/internal/execx"
)

// Fake records every command and answers from a handler or a script keyed by the full
// command line. Unscripted commands exit 127.
type Fake struct {
	Calls   []execx.Cmd
	Script  map[string]*execx.Result
	Handler func(c execx.Cmd) (*execx.Result, error)
}

var _ execx.Runner = (*Fake)(nil)

// New returns a Fake answering from script.
func New(script map[string]*execx.Result) *Fake {
	return &Fake{Script: script}
}

func (f *Fake) Run(ctx context.Context, c execx.Cmd) (*execx.Result, error) {
	f.Calls = append(f.Calls, c)
	if f.Handler != nil {
		return f.Handler(c)
	}
	if res, ok := f.Script[c.String()]; ok {
		return res, nil
	}
	return &execx.Result{ExitCode: 127, Stderr: []byte(fmt.Sprintf("unscripted: %s", c))}, nil
}

// Ok is a successful result with the given stdout.
func Ok(stdout string) *execx.Result {
	return &execx.Result{Stdout: []byte(stdout)}
}

// Fail is a failed result with the given exit code and stderr.
func Fail(code int, stderr string) *execx.Result {
	return &execx.Result{ExitCode: code, Stderr: []byte(stderr)}
}

// Commands returns the recorded command lines.
func (f *Fake) Commands() []string {
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.String())
	}
	return out
}

// Ran reports whether any recorded command starts with prefix.
func (f *Fake) Ran(prefix string) bool {
	for _, c := range f.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			return true
		}
	}
	return false
}
