// Package pkgconfig queries the pkg-config tool for MagickWand's version and build flags.
package pkgconfig

import (
	"context"
	"fmt"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
	"github.com/goplus/magicksys"
	"github.com/goplus/magicksys/internal/execx"
)

// Package is the pkg-config module name of the wand API.
const Package = "MagickWand"

// Supported MagickWand versions, inclusive.
const (
	MinVersion = "7.0"
	MaxVersion = "7.1"
)

// Supported is the [MinVersion, MaxVersion] window.
var Supported = mustRange(MinVersion, MaxVersion)

// Library is what pkg-config reports for a package.
type Library struct {
	Version      string
	Libs         []string
	LinkPaths    []string
	IncludePaths []string
	CFlags       []string // defines and other compiler flags besides -I
	LDFlags      []string // linker flags besides -L and -l
}

// Client runs pkg-config through Runner.
type Client struct {
	Path   string
	Runner execx.Runner
}

// New returns a Client for the pkg-config binary at path.
func New(path string, runner execx.Runner) *Client {
	if path == "" {
		path = "pkg-config"
	}
	return &Client{Path: path, Runner: runner}
}

func (c *Client) run(ctx context.Context, args ...string) (execx.Cmd, *execx.Result, error) {
	cmd := execx.Cmd{Path: c.Path, Args: args}
	res, err := c.Runner.Run(ctx, cmd)
	return cmd, res, err
}

// ModVersion returns the installed version of pkg. A missing package or a missing
// pkg-config binary is a *magicksys.ProbeError.
func (c *Client) ModVersion(ctx context.Context, pkg string) (string, error) {
	_, res, err := c.run(ctx, "--modversion", pkg)
	if err != nil {
		return "", &magicksys.ProbeError{Op: "pkg-config", Err: err}
	}
	if !res.Success() {
		return "", &magicksys.ProbeError{
			Op:  "pkg-config",
			Err: fmt.Errorf("%w: %s", magicksys.ErrNotInstalled, strings.TrimSpace(string(res.Stderr))),
		}
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// CheckVersion asserts that the installed pkg lies within r.
//
// The lower and upper bounds are checked by two separate invocations: pkg-config
// ignores --max-version when it is combined with other query options on some
// distributions.
func (c *Client) CheckVersion(ctx context.Context, pkg string, r Range) (string, error) {
	version, err := c.ModVersion(ctx, pkg)
	if err != nil {
		return "", err
	}
	outOfRange := &magicksys.VersionError{Package: pkg, Version: version, Min: r.Min, Max: r.Max}
	for _, bound := range []string{"--atleast-version=" + r.Min, "--max-version=" + r.Max} {
		cmd, res, err := c.run(ctx, bound, pkg)
		if err != nil {
			return "", &magicksys.SubprocessError{Stage: magicksys.StagePkgConfig, Command: cmd.String(), ExitCode: -1, Err: err}
		}
		if !res.Success() {
			return "", outOfRange
		}
	}
	// pkg-config builds that ignore one of the bound options accept anything.
	if !r.Contains(version) {
		return "", outOfRange
	}
	return version, nil
}

// Probe queries the compile and link flags of pkg. With static set, the private
// dependencies needed for static linking are included.
func (c *Client) Probe(ctx context.Context, pkg string, static bool) (*Library, error) {
	args := []string{"--cflags", "--libs"}
	if static {
		args = append(args, "--static")
	}
	cmd, res, err := c.run(ctx, append(args, pkg)...)
	if err != nil {
		return nil, &magicksys.SubprocessError{Stage: magicksys.StagePkgConfig, Command: cmd.String(), ExitCode: -1, Err: err}
	}
	if !res.Success() {
		return nil, &magicksys.SubprocessError{
			Stage:    magicksys.StagePkgConfig,
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return Parse(string(res.Stdout))
}

// Parse splits combined --cflags --libs output into a Library.
func Parse(out string) (*Library, error) {
	words, err := shlex.Split(strings.TrimSpace(out), true)
	if err != nil {
		return nil, fmt.Errorf("parse pkg-config output: %w", err)
	}
	lib := &Library{}
	seen := make(map[string]bool)
	add := func(dst *[]string, kind, v string) {
		if v == "" || seen[kind+v] {
			return
		}
		seen[kind+v] = true
		*dst = append(*dst, v)
	}
	for i := 0; i < len(words); i++ {
		w := words[i]
		switch {
		case strings.HasPrefix(w, "-I"):
			add(&lib.IncludePaths, "I", strings.TrimPrefix(w, "-I"))
		case strings.HasPrefix(w, "-L"):
			add(&lib.LinkPaths, "L", strings.TrimPrefix(w, "-L"))
		case strings.HasPrefix(w, "-l"):
			add(&lib.Libs, "l", strings.TrimPrefix(w, "-l"))
		case w == "-framework" && i+1 < len(words):
			i++
			add(&lib.LDFlags, "ld", w+" "+words[i])
		case strings.HasPrefix(w, "-Wl,"), !strings.HasPrefix(w, "-"):
			add(&lib.LDFlags, "ld", w)
		case w == "-pthread", strings.HasPrefix(w, "-fopenmp"):
			add(&lib.CFlags, "c", w)
			add(&lib.LDFlags, "ld", w)
		default:
			add(&lib.CFlags, "c", w)
		}
	}
	return lib, nil
}
