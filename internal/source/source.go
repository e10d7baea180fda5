// Package source builds the vendored ImageMagick tree into a private prefix and
// resolves the libraries it produced.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/magicksys"
	"github.com/goplus/magicksys/internal/config"
	"github.com/goplus/magicksys/internal/directive"
	"github.com/goplus/magicksys/internal/env"
	"github.com/goplus/magicksys/internal/execx"
	"github.com/goplus/magicksys/internal/linkmode"
	"github.com/goplus/magicksys/internal/pkgconfig"
	"github.com/goplus/magicksys/pkgs/buildsys/autotools"
	"github.com/rs/zerolog"
)

// ConfigureFlags is the fixed feature set of the vendored build. --prefix is added
// by the build system.
var ConfigureFlags = []string{
	"--disable-osx-universal-binary",
	"--with-magick-plus-plus=no",
	"--with-perl=no",
	"--disable-dependency-tracking",
	"--disable-silent-rules",
	"--disable-opencl",
	"--disable-shared",
	"--enable-static",
	"--with-freetype=yes",
	"--with-modules",
	"--with-openjp2",
	"--with-openexr",
	"--with-webp=yes",
	"--with-heic=no",
	"--with-gslib",
	"--without-fftw",
	"--without-pango",
	"--without-x",
	"--without-wmf",
}

const unexpectedSourceBuild = "package was building from source but should not have been"

// Result describes the freshly installed library.
type Result struct {
	Prefix  string
	Library *pkgconfig.Library
	Static  map[string]bool // lib name -> archive found in the prefix
}

// Builder runs PREPARE, CONFIGURE, MAKE_INSTALL and POST_BUILD_PROBE in order.
// Any failure aborts the remaining stages.
type Builder struct {
	Config  *config.Config
	Runner  execx.Runner
	Emitter *directive.Emitter
	Log     zerolog.Logger
}

// New returns a Builder.
func New(cfg *config.Config, runner execx.Runner, em *directive.Emitter, log zerolog.Logger) *Builder {
	return &Builder{Config: cfg, Runner: runner, Emitter: em, Log: log}
}

// Build compiles and installs the vendored tree, then emits the directives for the
// installed libraries.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	c := b.Config
	if c.ExpectsExistingInstall() {
		b.Emitter.Warning("for testing purposes: " + unexpectedSourceBuild)
		return nil, &magicksys.ExpectationError{Msg: unexpectedSourceBuild}
	}
	if err := b.prepare(); err != nil {
		return nil, err
	}

	at := autotools.New(b.Runner, c.SourceDir, c.OutDir)
	at.Make(c.Make)
	at.Jobs(c.Jobs)

	b.Log.Info().Str("prefix", c.OutDir).Msg("running `configure`...")
	if err := at.Configure(ctx, ConfigureFlags...); err != nil {
		return nil, err
	}
	b.Log.Info().Str("jobs", c.Jobs).Msg("running `make install`...")
	if err := at.Install(ctx); err != nil {
		return nil, err
	}
	b.Log.Info().Msg("finished `make install`")

	return b.resolve(ctx, at.OutputDir())
}

// prepare makes sure <SourceDir>/configure exists, unpacking the vendored archive
// when the tree is not checked out.
func (b *Builder) prepare() error {
	c := b.Config
	if _, err := os.Stat(filepath.Join(c.SourceDir, "configure")); err == nil {
		return nil
	}
	if _, err := os.Stat(c.SourceArchive); err != nil {
		return &magicksys.MissingDirectoryError{What: "source", Path: c.SourceDir}
	}
	b.Log.Info().Str("archive", c.SourceArchive).Msg("unpacking vendored source")
	if err := Unpack(c.SourceArchive, c.SourceDir, b.Log); err != nil {
		return fmt.Errorf("unpack %s: %w", c.SourceArchive, err)
	}
	if _, err := os.Stat(filepath.Join(c.SourceDir, "configure")); err != nil {
		return &magicksys.MissingDirectoryError{What: "source", Path: c.SourceDir}
	}
	return nil
}

// resolve asks pkg-config about the tree installed in prefix. The library names
// depend on the enabled features (MagickWand-7.Q16HDRI and the like), so they
// cannot be guessed.
func (b *Builder) resolve(ctx context.Context, prefix string) (*Result, error) {
	guard, err := env.Set("PKG_CONFIG_PATH", filepath.Join(prefix, "lib", "pkgconfig"))
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	lib, err := pkgconfig.New(b.Config.PkgConfig, b.Runner).Probe(ctx, pkgconfig.Package, true)
	if err != nil {
		var se *magicksys.SubprocessError
		if errors.As(err, &se) {
			se.Stage = magicksys.StagePostBuildProbe
			return nil, se
		}
		return nil, err
	}

	res := &Result{Prefix: prefix, Library: lib, Static: make(map[string]bool)}
	prefixLib := []string{filepath.Join(prefix, "lib")}
	for _, d := range lib.LinkPaths {
		b.Emitter.LinkSearch(d)
	}
	for _, d := range lib.IncludePaths {
		b.Emitter.Include(d)
	}
	for _, f := range lib.CFlags {
		b.Emitter.CFlag(f)
	}
	for _, l := range lib.Libs {
		mode := linkmode.Dynamic
		if _, ok := linkmode.HasStatic(prefixLib, l); ok {
			mode = linkmode.Static
			res.Static[l] = true
		}
		b.Emitter.LinkLib(mode, l)
	}
	for _, f := range lib.LDFlags {
		b.Emitter.LDFlag(f)
	}
	return res, nil
}
