// Package config takes the one-time snapshot of everything that steers a build:
// environment variables, an optional config file and compile-time features.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goplus/magicksys/internal/env"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables consumed by the build.
const (
	EnvSysStatic             = "IMAGEMAGICK_SYS_STATIC"
	EnvIncludeDirs           = "IMAGE_MAGICK_INCLUDE_DIRS"
	EnvLibDirs               = "IMAGE_MAGICK_LIB_DIRS"
	EnvLibs                  = "IMAGE_MAGICK_LIBS"
	EnvDir                   = "IMAGE_MAGICK_DIR"
	EnvStatic                = "IMAGE_MAGICK_STATIC"
	EnvNumJobs               = "NUM_JOBS"
	EnvExpectBuildFromSource = "_TEST_EXPECT_BUILD_FROM_SOURCE"
	EnvExpectExistingInstall = "_TEST_EXPECT_USE_EXISTING_INSTALLATION"

	EnvSourceDir     = "IMAGE_MAGICK_SRC_DIR"
	EnvSourceArchive = "IMAGE_MAGICK_SRC_ARCHIVE"
	EnvOutDir        = "MAGICKSYS_OUT_DIR"
	EnvPkgConfig     = "PKG_CONFIG"
	EnvMake          = "MAKE"
	EnvGOOS          = "GOOS"
	EnvGOARCH        = "GOARCH"
)

// Watched lists the variables whose change must trigger a rebuild.
var Watched = []string{
	EnvSysStatic,
	EnvIncludeDirs,
	EnvLibDirs,
	EnvLibs,
	EnvDir,
	EnvStatic,
	EnvNumJobs,
	EnvExpectBuildFromSource,
	EnvExpectExistingInstall,
	EnvSourceDir,
	EnvSourceArchive,
	EnvOutDir,
}

// DefaultSourceDir is the vendored source tree, relative to the working directory.
const DefaultSourceDir = "imagemagick-src"

// File is the optional on-disk configuration. Environment variables win over it.
type File struct {
	Static        bool   `json:"static" yaml:"static" toml:"static"`
	SourceDir     string `json:"source_dir" yaml:"source_dir" toml:"source_dir"`
	SourceArchive string `json:"source_archive" yaml:"source_archive" toml:"source_archive"`
	OutDir        string `json:"out_dir" yaml:"out_dir" toml:"out_dir"`
	Jobs          string `json:"jobs" yaml:"jobs" toml:"jobs"`
	PkgConfig     string `json:"pkg_config" yaml:"pkg_config" toml:"pkg_config"`
	Make          string `json:"make" yaml:"make" toml:"make"`
	CgoOut        string `json:"cgo_out" yaml:"cgo_out" toml:"cgo_out"`
	CgoPackage    string `json:"cgo_package" yaml:"cgo_package" toml:"cgo_package"`
}

// LoadFile reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// Config is the immutable snapshot used for one invocation.
// Nil slices and empty strings mean "not configured".
type Config struct {
	ForceStatic bool

	// Test harness assertions; nil when the toggle is unset.
	ExpectBuildFromSource *bool
	ExpectExistingInstall *bool

	IncludeDirs  []string
	LibDirs      []string
	Libs         []string
	Dir          string
	LinkOverride string
	Jobs         string

	Target string // GOOS of the binary being built
	Arch   string

	SourceDir     string
	SourceArchive string
	OutDir        string
	PkgConfig     string
	Make          string

	CgoOut     string
	CgoPackage string
}

// Load snapshots the environment over f, which may be nil.
func Load(f *File) (*Config, error) {
	if f == nil {
		f = &File{}
	}
	c := &Config{
		ForceStatic:   staticFeature || f.Static,
		Jobs:          f.Jobs,
		Target:        runtime.GOOS,
		Arch:          runtime.GOARCH,
		SourceDir:     f.SourceDir,
		SourceArchive: f.SourceArchive,
		OutDir:        f.OutDir,
		PkgConfig:     f.PkgConfig,
		Make:          f.Make,
		CgoOut:        f.CgoOut,
		CgoPackage:    f.CgoPackage,
	}
	if v, ok := env.Lookup(EnvSysStatic); ok && v == "1" {
		c.ForceStatic = true
	}
	c.ExpectBuildFromSource = lookupToggle(EnvExpectBuildFromSource)
	c.ExpectExistingInstall = lookupToggle(EnvExpectExistingInstall)

	if v, ok := env.Lookup(EnvIncludeDirs); ok {
		c.IncludeDirs = env.SplitList(v)
	}
	if v, ok := env.Lookup(EnvLibDirs); ok {
		c.LibDirs = env.SplitList(v)
	}
	if v, ok := env.Lookup(EnvLibs); ok {
		c.Libs = env.SplitList(v)
	}
	c.Dir, _ = env.Lookup(EnvDir)
	c.LinkOverride, _ = env.Lookup(EnvStatic)

	overrideString(&c.Jobs, EnvNumJobs)
	overrideString(&c.Target, EnvGOOS)
	overrideString(&c.Arch, EnvGOARCH)
	overrideString(&c.SourceDir, EnvSourceDir)
	overrideString(&c.SourceArchive, EnvSourceArchive)
	overrideString(&c.OutDir, EnvOutDir)
	overrideString(&c.PkgConfig, EnvPkgConfig)
	overrideString(&c.Make, EnvMake)

	if c.PkgConfig == "" {
		c.PkgConfig = "pkg-config"
	}
	if c.Make == "" {
		c.Make = "make"
	}
	if c.SourceDir == "" {
		c.SourceDir = DefaultSourceDir
	}
	src, err := filepath.Abs(c.SourceDir)
	if err != nil {
		return nil, err
	}
	c.SourceDir = src
	if c.SourceArchive == "" {
		c.SourceArchive = c.SourceDir + ".tar.xz"
	}
	if c.OutDir == "" {
		work, err := env.WorkDir()
		if err != nil {
			return nil, err
		}
		c.OutDir = filepath.Join(work, c.Target+"-"+c.Arch)
	}
	if c.CgoPackage == "" {
		c.CgoPackage = "imagick"
	}
	return c, nil
}

// ExpectsSourceBuild reports whether the harness asserts the source path must be taken.
func (c *Config) ExpectsSourceBuild() bool {
	return c.ExpectBuildFromSource != nil && *c.ExpectBuildFromSource
}

// ExpectsExistingInstall reports whether the harness asserts an installation must be used.
func (c *Config) ExpectsExistingInstall() bool {
	return c.ExpectExistingInstall != nil && *c.ExpectExistingInstall
}

// lookupToggle: unset → nil, "0" → false, anything else → true.
func lookupToggle(key string) *bool {
	v, ok := env.Lookup(key)
	if !ok {
		return nil
	}
	b := v != "0"
	return &b
}

func overrideString(dst *string, key string) {
	if v, ok := env.Lookup(key); ok {
		*dst = v
	}
}
