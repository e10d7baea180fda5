// Package autotools wraps the classic configure / make install workflow.
package autotools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/magicksys"
	"github.com/goplus/magicksys/internal/execx"
)

// AutoTools drives Autotools-style builds. Every step runs exactly once and its
// output is captured for diagnostics.
type AutoTools struct {
	runner     execx.Runner
	makeTool   string
	sourceDir  string
	installDir string
	jobs       string
}

// New returns a ready-to-use AutoTools that builds sourceDir in-tree and installs
// into installDir.
func New(runner execx.Runner, sourceDir, installDir string) *AutoTools {
	return &AutoTools{
		runner:     runner,
		makeTool:   "make",
		sourceDir:  sourceDir,
		installDir: installDir,
	}
}

// Make overrides the make binary.
func (a *AutoTools) Make(path string) {
	if path != "" {
		a.makeTool = path
	}
}

// Jobs passes -j<n> to make; empty means no parallelism flag.
func (a *AutoTools) Jobs(n string) { a.jobs = n }

// Configure runs <sourceDir>/configure inside the source tree.
// --prefix is prepended automatically when installDir is set.
// Extra flags are appended after --prefix.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(a.sourceDir, 0o755); err != nil {
		return err
	}
	exe := filepath.Join(a.sourceDir, "configure")
	if err := checkExecutable(exe); err != nil {
		return &magicksys.SubprocessError{
			Stage:    magicksys.StageConfigure,
			Command:  exe,
			ExitCode: -1,
			Err:      err,
		}
	}
	flags := make([]string, 0, 1+len(args))
	if a.installDir != "" {
		flags = append(flags, "--prefix="+a.installDir)
	}
	return a.run(ctx, magicksys.StageConfigure, exe, append(flags, args...))
}

// Install runs "make install", honoring Jobs, with optional extra arguments appended.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"install"}
	if a.jobs != "" {
		cmdArgs = append(cmdArgs, "-j"+a.jobs)
	}
	return a.run(ctx, magicksys.StageMakeInstall, a.makeTool, append(cmdArgs, args...))
}

// OutputDir returns installDir if set, otherwise the source tree.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.sourceDir
}

func (a *AutoTools) run(ctx context.Context, stage magicksys.Stage, name string, args []string) error {
	cmd := execx.Cmd{Path: name, Args: args, Dir: a.sourceDir}
	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return &magicksys.SubprocessError{Stage: stage, Command: cmd.String(), ExitCode: -1, Err: err}
	}
	if !res.Success() {
		return &magicksys.SubprocessError{
			Stage:    stage,
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      fmt.Errorf("exit status %d", res.ExitCode),
		}
	}
	return nil
}
