// Package build selects between an existing installation and a source build and
// runs the chosen path.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/magicksys"
	"github.com/goplus/magicksys/internal/config"
	"github.com/goplus/magicksys/internal/directive"
	"github.com/goplus/magicksys/internal/execx"
	"github.com/goplus/magicksys/internal/pkgconfig"
	"github.com/goplus/magicksys/internal/probe"
	"github.com/goplus/magicksys/internal/source"
	"github.com/rs/zerolog"
)

const unexpectedExistingInstall = "package was not built from source but it should have been"

// Result is the outcome of a successful run. Exactly one of Installation and
// Source is set.
type Result struct {
	Installation *probe.Installation
	Source       *source.Result
}

// FromSource reports whether the vendored tree was built.
func (r *Result) FromSource() bool { return r.Source != nil }

type Builder struct {
	Config  *config.Config
	Runner  execx.Runner
	Emitter *directive.Emitter
	Log     zerolog.Logger
}

func NewBuilder(cfg *config.Config, runner execx.Runner, em *directive.Emitter, log zerolog.Logger) *Builder {
	return &Builder{Config: cfg, Runner: runner, Emitter: em, Log: log}
}

// Run registers the watched environment and resolves the library: a forced static
// build goes straight to the source tree, otherwise an existing installation is
// tried first and a recoverable failure falls back to the source tree.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	b.watchEnv()
	if b.Config.ForceStatic {
		b.Log.Info().Msg("wants static")
		return b.buildFromSource(ctx)
	}

	mark := b.Emitter.Mark()
	inst, err := b.probe(ctx)
	if err == nil {
		if b.Config.ExpectsSourceBuild() {
			b.Emitter.Warning("for testing purposes: " + unexpectedExistingInstall)
			return nil, &magicksys.ExpectationError{Msg: unexpectedExistingInstall}
		}
		b.Log.Info().Msg("found existing installation.")
		return &Result{Installation: inst}, nil
	}
	if magicksys.IsFatal(err) {
		return nil, err
	}
	b.Log.Info().Err(err).Msg("no existing installation found, building from source.")
	// the abandoned installation must not leak into the generated cgo file
	b.Emitter.Rollback(mark)
	return b.buildFromSource(ctx)
}

// Probe only looks for an existing installation; it never builds.
func (b *Builder) Probe(ctx context.Context) (*Result, error) {
	b.watchEnv()
	inst, err := b.probe(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Installation: inst}, nil
}

// BuildFromSource skips probing and builds the vendored tree.
func (b *Builder) BuildFromSource(ctx context.Context) (*Result, error) {
	b.watchEnv()
	return b.buildFromSource(ctx)
}

// WriteCgo renders everything emitted so far into a cgo source file at path.
func (b *Builder) WriteCgo(path string) error {
	src, err := directive.RenderCgo(b.Config.CgoPackage, b.Config.Target, b.Emitter.Directives())
	if err != nil {
		return fmt.Errorf("render cgo flags: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}

func (b *Builder) watchEnv() {
	for _, name := range config.Watched {
		b.Emitter.RerunIfEnvChanged(name)
	}
}

func (b *Builder) probe(ctx context.Context) (*probe.Installation, error) {
	pc := pkgconfig.New(b.Config.PkgConfig, b.Runner)
	return probe.New(b.Config, pc, b.Emitter, b.Log).Probe(ctx)
}

func (b *Builder) buildFromSource(ctx context.Context) (*Result, error) {
	res, err := source.New(b.Config, b.Runner, b.Emitter, b.Log).Build(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Source: res}, nil
}
