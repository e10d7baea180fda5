// Package probe locates an existing MagickWand installation and emits the
// directives needed to link against it.
package probe

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goplus/magicksys"
	"github.com/goplus/magicksys/internal/config"
	"github.com/goplus/magicksys/internal/directive"
	"github.com/goplus/magicksys/internal/linkmode"
	"github.com/goplus/magicksys/internal/pkgconfig"
	"github.com/rs/zerolog"
)

// Defaults are hard-coded locations for targets where pkg-config is unreliable.
type Defaults struct {
	IncludeDirs []string
	LibDirs     []string
	Libs        []string
}

var platformDefaults = map[string]Defaults{
	"freebsd": {
		IncludeDirs: []string{"/usr/local/include/ImageMagick-7"},
		LibDirs:     []string{"/usr/local/lib"},
		Libs:        []string{"MagickWand-7"},
	},
	"windows": {
		Libs: []string{"CORE_RL_MagickWand_"},
	},
}

// PlatformDefaults returns the defaults for goos, if any.
func PlatformDefaults(goos string) Defaults {
	return platformDefaults[goos]
}

// Installation is a resolved existing installation.
type Installation struct {
	Version     string // empty when pkg-config was not consulted
	IncludeDirs []string
	LibDirs     []string
	Libs        []string
	Mode        linkmode.Mode
	CFlags      []string
	LDFlags     []string
}

// Prober resolves an Installation from configuration, platform defaults and
// pkg-config, in that order.
type Prober struct {
	Config    *config.Config
	PkgConfig *pkgconfig.Client
	Emitter   *directive.Emitter
	Log       zerolog.Logger

	lib    *pkgconfig.Library
	libErr error
	ran    bool
}

// New returns a Prober.
func New(cfg *config.Config, pc *pkgconfig.Client, em *directive.Emitter, log zerolog.Logger) *Prober {
	return &Prober{Config: cfg, PkgConfig: pc, Emitter: em, Log: log}
}

// Probe resolves the installation. Directories are validated and emitted one by
// one, so a later failure leaves the earlier directives in place.
//
// A *magicksys.ProbeError means no installation could be resolved and the caller may
// fall back to a source build; every other error is fatal.
func (p *Prober) Probe(ctx context.Context) (*Installation, error) {
	c := p.Config
	def := PlatformDefaults(c.Target)
	includeDirs := firstNonEmpty(c.IncludeDirs, def.IncludeDirs)
	libDirs := firstNonEmpty(c.LibDirs, def.LibDirs)
	libs := firstNonEmpty(c.Libs, def.Libs)

	// Include dirs alone never justify a pkg-config run: with lib dirs and libs
	// both given, the build is fully described by configuration.
	needPkgConfig := (len(libDirs) == 0 && c.Dir == "") || len(libs) == 0

	inst := &Installation{}
	var err error
	if inst.LibDirs, err = p.resolveDirs(ctx, libDirs, "lib", true, func(l *pkgconfig.Library) []string { return l.LinkPaths }); err != nil {
		return nil, err
	}
	if err := p.emitDirs("library", inst.LibDirs, p.Emitter.LinkSearch); err != nil {
		return nil, err
	}
	if inst.IncludeDirs, err = p.resolveDirs(ctx, includeDirs, "include", needPkgConfig, func(l *pkgconfig.Library) []string { return l.IncludePaths }); err != nil {
		return nil, err
	}
	if err := p.emitDirs("include", inst.IncludeDirs, p.Emitter.Include); err != nil {
		return nil, err
	}

	if len(libs) > 0 {
		inst.Libs = libs
	} else {
		lib, err := p.library(ctx)
		if err != nil {
			return nil, err
		}
		inst.Libs = lib.Libs
	}
	if len(inst.Libs) == 0 {
		return nil, &magicksys.ProbeError{Op: "libs", Err: magicksys.ErrNotInstalled}
	}

	if p.lib != nil {
		inst.Version = p.lib.Version
		inst.CFlags = p.lib.CFlags
		inst.LDFlags = p.lib.LDFlags
		for _, f := range inst.CFlags {
			p.Emitter.CFlag(f)
		}
	}

	if inst.Mode, err = p.linkMode(inst); err != nil {
		return nil, err
	}
	for _, l := range inst.Libs {
		p.Emitter.LinkLib(inst.Mode, l)
	}
	for _, f := range inst.LDFlags {
		p.Emitter.LDFlag(f)
	}
	p.Log.Debug().
		Str("mode", inst.Mode.String()).
		Strs("libs", inst.Libs).
		Strs("lib_dirs", inst.LibDirs).
		Msg("using existing installation")
	return inst, nil
}

// resolveDirs picks configured dirs, then <Dir>/<sub>, then pkg-config when allowed.
func (p *Prober) resolveDirs(ctx context.Context, dirs []string, sub string, allowPkgConfig bool, fromLib func(*pkgconfig.Library) []string) ([]string, error) {
	if len(dirs) > 0 {
		return dirs, nil
	}
	if p.Config.Dir != "" {
		return []string{filepath.Join(p.Config.Dir, sub)}, nil
	}
	if !allowPkgConfig {
		p.Log.Debug().Str("kind", sub).Msg("no directories configured, skipping pkg-config")
		return nil, nil
	}
	lib, err := p.library(ctx)
	if err != nil {
		return nil, err
	}
	return fromLib(lib), nil
}

func (p *Prober) emitDirs(what string, dirs []string, emit func(string)) error {
	for _, d := range dirs {
		fi, err := os.Stat(d)
		if err != nil || !fi.IsDir() {
			return &magicksys.MissingDirectoryError{What: what, Path: d}
		}
		emit(d)
	}
	return nil
}

// library runs the pkg-config version check and flags query at most once.
func (p *Prober) library(ctx context.Context) (*pkgconfig.Library, error) {
	if p.ran {
		return p.lib, p.libErr
	}
	p.ran = true
	p.lib, p.libErr = p.queryPkgConfig(ctx)
	return p.lib, p.libErr
}

func (p *Prober) queryPkgConfig(ctx context.Context) (*pkgconfig.Library, error) {
	version, err := p.PkgConfig.CheckVersion(ctx, pkgconfig.Package, pkgconfig.Supported)
	if err != nil {
		return nil, err
	}
	lib, err := p.PkgConfig.Probe(ctx, pkgconfig.Package, false)
	if err != nil {
		return nil, &magicksys.ProbeError{Op: "pkg-config flags", Err: err}
	}
	lib.Version = version
	p.Log.Debug().Str("version", version).Msg("pkg-config found " + pkgconfig.Package)
	return lib, nil
}

func (p *Prober) linkMode(inst *Installation) (linkmode.Mode, error) {
	if len(inst.LibDirs) == 0 {
		// Nothing to scan: pkg-config omits the default linker search path, so the
		// library is assumed linkable dynamically instead of failing detection.
		if m, ok := linkmode.Override(p.Config.LinkOverride); ok {
			return m, nil
		}
		return linkmode.Dynamic, nil
	}
	return linkmode.Detect(inst.LibDirs, inst.Libs, p.Config.LinkOverride)
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
