// Package directive emits the line-oriented instructions read by the enclosing build.
//
// Every line has the form
//
//	magicksys:<kind>=<value>
//
// and is written as soon as it is produced, so a later failure still leaves the
// directives emitted so far on record.
package directive

import (
	"fmt"
	"io"
	"strings"

	"github.com/goplus/magicksys/internal/linkmode"
)

// Prefix starts every directive line.
const Prefix = "magicksys:"

// Kind names a directive.
type Kind string

const (
	LinkSearch        Kind = "link-search"
	LinkLib           Kind = "link-lib"
	Include           Kind = "include"
	CFlag             Kind = "cflag"
	LDFlag            Kind = "ldflag"
	RerunIfEnvChanged Kind = "rerun-if-env-changed"
	Warning           Kind = "warning"
)

// Directive is a single emitted instruction.
type Directive struct {
	Kind  Kind
	Mode  linkmode.Mode // LinkLib only
	Value string
}

// String renders d without the prefix.
func (d Directive) String() string {
	switch d.Kind {
	case LinkSearch:
		return fmt.Sprintf("%s=native=%s", d.Kind, d.Value)
	case LinkLib:
		return fmt.Sprintf("%s=%s=%s", d.Kind, d.Mode, d.Value)
	}
	return fmt.Sprintf("%s=%s", d.Kind, d.Value)
}

// Emitter writes directives to w and keeps a record of them.
type Emitter struct {
	w     io.Writer
	err   error
	out   []Directive
	rerun map[string]bool
}

// New returns an Emitter writing to w.
func New(w io.Writer) *Emitter {
	return &Emitter{w: w, rerun: make(map[string]bool)}
}

func (e *Emitter) emit(d Directive) {
	e.out = append(e.out, d)
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, Prefix+d.String()+"\n")
}

// LinkSearch adds dir to the native library search path.
func (e *Emitter) LinkSearch(dir string) { e.emit(Directive{Kind: LinkSearch, Value: dir}) }

// LinkLib links lib with the given mode.
func (e *Emitter) LinkLib(mode linkmode.Mode, lib string) {
	e.emit(Directive{Kind: LinkLib, Mode: mode, Value: lib})
}

// Include exports an include directory to dependents.
func (e *Emitter) Include(dir string) { e.emit(Directive{Kind: Include, Value: dir}) }

// CFlag passes a compiler flag such as a -D define.
func (e *Emitter) CFlag(flag string) { e.emit(Directive{Kind: CFlag, Value: flag}) }

// LDFlag passes a linker flag other than -L and -l, e.g. "-framework Foundation".
func (e *Emitter) LDFlag(flag string) { e.emit(Directive{Kind: LDFlag, Value: flag}) }

// RerunIfEnvChanged registers name; repeated registrations are dropped.
func (e *Emitter) RerunIfEnvChanged(name string) {
	if e.rerun[name] {
		return
	}
	e.rerun[name] = true
	e.emit(Directive{Kind: RerunIfEnvChanged, Value: name})
}

// Warning surfaces msg to the user through the build orchestrator.
func (e *Emitter) Warning(msg string) {
	e.emit(Directive{Kind: Warning, Value: strings.ReplaceAll(msg, "\n", " ")})
}

// Directives returns everything emitted so far.
func (e *Emitter) Directives() []Directive { return e.out }

// Mark returns a position in the record for a later Rollback.
func (e *Emitter) Mark() int { return len(e.out) }

// Rollback forgets the directives recorded after mark, except rerun registrations.
// Lines already written stay written; only the record used by RenderCgo shrinks.
func (e *Emitter) Rollback(mark int) {
	if mark < 0 || mark >= len(e.out) {
		return
	}
	kept := e.out[:mark]
	for _, d := range e.out[mark:] {
		if d.Kind == RerunIfEnvChanged {
			kept = append(kept, d)
		}
	}
	e.out = kept
}

// Err returns the first write error.
func (e *Emitter) Err() error { return e.err }
