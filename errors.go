// Package magicksys locates an installed MagickWand library at build time, or builds the
// vendored copy from source, and reports how the cgo binding should link against it.
package magicksys

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInstalled indicates no existing installation could be resolved.
var ErrNotInstalled = errors.New("no existing MagickWand installation found")

// Stage names the subprocess step that failed.
type Stage string

const (
	StagePkgConfig      Stage = "pkg-config"
	StageConfigure      Stage = "configure"
	StageMakeInstall    Stage = "make install"
	StagePostBuildProbe Stage = "post-build pkg-config"
)

// MissingDirectoryError reports a configured or discovered directory that does not exist.
type MissingDirectoryError struct {
	What string // "library", "include", "source"
	Path string
}

func (e *MissingDirectoryError) Error() string {
	return fmt.Sprintf("ImageMagick %s directory does not exist: %s", e.What, e.Path)
}

// ProbeError wraps a failure to resolve an existing installation.
// It is the only recoverable kind: the caller falls back to a source build.
type ProbeError struct {
	Op  string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// SubprocessError reports a child process that could not be launched or exited non-zero.
type SubprocessError struct {
	Stage    Stage
	Command  string
	ExitCode int // -1 when the process never started
	Stdout   []byte
	Stderr   []byte
	Err      error
}

func (e *SubprocessError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("`%s` command execution failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("`%s` failed with exit code %d", e.Stage, e.ExitCode)
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// Diagnostics returns the captured output in a human readable block.
func (e *SubprocessError) Diagnostics() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command: %s\n", e.Command)
	fmt.Fprintf(&b, "stdout:\n%s\n", e.Stdout)
	fmt.Fprintf(&b, "stderr:\n%s", e.Stderr)
	return b.String()
}

// VersionError reports an installed package outside the supported version range.
type VersionError struct {
	Package string
	Version string
	Min     string
	Max     string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s version %s is outside the supported range [%s, %s]", e.Package, e.Version, e.Min, e.Max)
}

// ArtifactError reports library directories that contain neither static nor shared artifacts
// for every required library.
type ArtifactError struct {
	LibDirs []string
	Libs    []string
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("ImageMagick libdirs at %q do not contain the required files to either statically or dynamically link %s",
		e.LibDirs, strings.Join(e.Libs, ", "))
}

// ExpectationError is raised by the test-only toggles when the wrong branch was taken.
type ExpectationError struct {
	Msg string
}

func (e *ExpectationError) Error() string {
	return "for testing purposes: " + e.Msg
}

// IsFatal reports whether err must abort the build instead of triggering the source fallback.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProbeError
	return !errors.As(err, &pe)
}
