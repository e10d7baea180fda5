package magicksys

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"probe", &ProbeError{Op: "pkg-config", Err: ErrNotInstalled}, false},
		{"wrapped probe", fmt.Errorf("find: %w", &ProbeError{Op: "lib dirs", Err: ErrNotInstalled}), false},
		{"missing dir", &MissingDirectoryError{What: "library", Path: "/nope"}, true},
		{"subprocess", &SubprocessError{Stage: StageConfigure, ExitCode: 1}, true},
		{"version", &VersionError{Package: "MagickWand", Version: "7.2", Min: "7.0", Max: "7.1"}, true},
		{"artifacts", &ArtifactError{LibDirs: []string{"/x"}, Libs: []string{"MagickWand"}}, true},
		{"expectation", &ExpectationError{Msg: "x"}, true},
		{"plain", errors.New("boom"), true},
	}
	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("%s: IsFatal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSubprocessErrorMessage(t *testing.T) {
	launch := &SubprocessError{Stage: StageConfigure, ExitCode: -1, Err: errors.New("no such file")}
	if got := launch.Error(); !strings.Contains(got, "command execution failed") {
		t.Errorf("launch error = %q", got)
	}
	if !errors.Is(launch, launch.Err) {
		t.Error("SubprocessError does not unwrap")
	}

	exit := &SubprocessError{
		Stage:    StageMakeInstall,
		Command:  "make install -j4",
		ExitCode: 2,
		Stdout:   []byte("compiling"),
		Stderr:   []byte("error: boom"),
	}
	if got := exit.Error(); got != "`make install` failed with exit code 2" {
		t.Errorf("exit error = %q", got)
	}
	diag := exit.Diagnostics()
	for _, want := range []string{"make install -j4", "compiling", "error: boom"} {
		if !strings.Contains(diag, want) {
			t.Errorf("Diagnostics() missing %q:\n%s", want, diag)
		}
	}
}
