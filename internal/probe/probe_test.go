package probe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/goplus/magicksys"
	"github.com/goplus/magicksys/internal/config"
	"github.com/goplus/magicksys/internal/directive"
	"github.com/goplus/magicksys/internal/execx"
	"github.com/goplus/magicksys/internal/execx/execxtest"
	"github.com/goplus/magicksys/internal/linkmode"
	"github.com/goplus/magicksys/internal/pkgconfig"
	"github.com/rs/zerolog"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newProber(cfg *config.Config, fake *execxtest.Fake) (*Prober, *bytes.Buffer) {
	var buf bytes.Buffer
	if cfg.Target == "" {
		cfg.Target = "linux"
	}
	return New(cfg, pkgconfig.New("pkg-config", fake), directive.New(&buf), zerolog.Nop()), &buf
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestProbeOverridesStaticWithoutSubprocess(t *testing.T) {
	libDir, incDir := t.TempDir(), t.TempDir()
	touch(t, libDir, "libMagickWand-7.Q16.a", "MagickCore-7.Q16.lib")

	fake := execxtest.New(nil)
	p, buf := newProber(&config.Config{
		LibDirs:     []string{libDir},
		IncludeDirs: []string{incDir},
		Libs:        []string{"MagickWand-7.Q16", "MagickCore-7.Q16"},
	}, fake)

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if inst.Mode != linkmode.Static {
		t.Errorf("Mode = %v, want static", inst.Mode)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("subprocesses spawned: %v", fake.Commands())
	}
	want := []string{
		"magicksys:link-search=native=" + libDir,
		"magicksys:include=" + incDir,
		"magicksys:link-lib=static=MagickWand-7.Q16",
		"magicksys:link-lib=static=MagickCore-7.Q16",
	}
	if diff := cmp.Diff(want, lines(buf)); diff != "" {
		t.Errorf("directives (-want +got):\n%s", diff)
	}
}

func TestProbeLibOverridesSkipPkgConfigForIncludes(t *testing.T) {
	libDir := t.TempDir()
	touch(t, libDir, "libMagickWand-7.Q16HDRI.a")

	fake := execxtest.New(nil)
	p, _ := newProber(&config.Config{
		LibDirs: []string{libDir},
		Libs:    []string{"MagickWand-7.Q16HDRI"},
	}, fake)

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("subprocesses spawned: %v", fake.Commands())
	}
	if len(inst.IncludeDirs) != 0 {
		t.Errorf("IncludeDirs = %v, want none", inst.IncludeDirs)
	}
}

func TestProbeOverrideForcesDynamic(t *testing.T) {
	libDir := t.TempDir()
	touch(t, libDir, "libMagickWand-7.Q16.a")

	p, _ := newProber(&config.Config{
		LibDirs:      []string{libDir},
		Libs:         []string{"MagickWand-7.Q16"},
		LinkOverride: "0",
	}, execxtest.New(nil))

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if inst.Mode != linkmode.Dynamic {
		t.Errorf("Mode = %v, want dynamic", inst.Mode)
	}
}

func TestProbeInstallRoot(t *testing.T) {
	root := t.TempDir()
	for _, sub := range []string{"lib", "include"} {
		if err := os.Mkdir(filepath.Join(root, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	touch(t, filepath.Join(root, "lib"), "libMagickWand-7.Q16.so")

	p, _ := newProber(&config.Config{Dir: root, Libs: []string{"MagickWand-7.Q16"}}, execxtest.New(nil))
	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if diff := cmp.Diff([]string{filepath.Join(root, "lib")}, inst.LibDirs); diff != "" {
		t.Errorf("LibDirs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join(root, "include")}, inst.IncludeDirs); diff != "" {
		t.Errorf("IncludeDirs (-want +got):\n%s", diff)
	}
	if inst.Mode != linkmode.Dynamic {
		t.Errorf("Mode = %v, want dynamic", inst.Mode)
	}
}

func pkgConfigScript(version, flags string, maxOK bool) map[string]*execx.Result {
	maxRes := execxtest.Ok("")
	if !maxOK {
		maxRes = execxtest.Fail(1, "")
	}
	return map[string]*execx.Result{
		"pkg-config --modversion MagickWand":          execxtest.Ok(version + "\n"),
		"pkg-config --atleast-version=7.0 MagickWand": execxtest.Ok(""),
		"pkg-config --max-version=7.1 MagickWand":     maxRes,
		"pkg-config --cflags --libs MagickWand":       execxtest.Ok(flags),
	}
}

func TestProbePkgConfig(t *testing.T) {
	libDir, incDir := t.TempDir(), t.TempDir()
	touch(t, libDir, "libMagickWand-7.Q16HDRI.so", "libMagickCore-7.Q16HDRI.so")
	flags := "-fopenmp -DMAGICKCORE_HDRI_ENABLE=1 -I" + incDir + " -L" + libDir +
		" -lMagickWand-7.Q16HDRI -lMagickCore-7.Q16HDRI\n"

	fake := execxtest.New(pkgConfigScript("7.0.11", flags, true))
	p, buf := newProber(&config.Config{}, fake)

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if inst.Version != "7.0.11" {
		t.Errorf("Version = %q", inst.Version)
	}
	wantCmds := []string{
		"pkg-config --modversion MagickWand",
		"pkg-config --atleast-version=7.0 MagickWand",
		"pkg-config --max-version=7.1 MagickWand",
		"pkg-config --cflags --libs MagickWand",
	}
	if diff := cmp.Diff(wantCmds, fake.Commands()); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}
	want := []string{
		"magicksys:link-search=native=" + libDir,
		"magicksys:include=" + incDir,
		"magicksys:cflag=-fopenmp",
		"magicksys:cflag=-DMAGICKCORE_HDRI_ENABLE=1",
		"magicksys:link-lib=dynamic=MagickWand-7.Q16HDRI",
		"magicksys:link-lib=dynamic=MagickCore-7.Q16HDRI",
		"magicksys:ldflag=-fopenmp",
	}
	if diff := cmp.Diff(want, lines(buf)); diff != "" {
		t.Errorf("directives (-want +got):\n%s", diff)
	}
}

func TestProbeSystemLinkPath(t *testing.T) {
	fake := execxtest.New(pkgConfigScript("7.0.10", "-lMagickWand-7.Q16\n", true))
	p, buf := newProber(&config.Config{}, fake)

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if inst.Mode != linkmode.Dynamic || len(inst.LibDirs) != 0 {
		t.Errorf("inst = %+v", inst)
	}
	if got := buf.String(); got != "magicksys:link-lib=dynamic=MagickWand-7.Q16\n" {
		t.Errorf("directives = %q", got)
	}
}

func TestProbeVersionTooNewAborts(t *testing.T) {
	fake := execxtest.New(pkgConfigScript("7.2", "", false))
	p, _ := newProber(&config.Config{}, fake)

	_, err := p.Probe(context.Background())
	var ve *magicksys.VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *VersionError", err)
	}
	if !magicksys.IsFatal(err) {
		t.Error("version error must abort the build")
	}
	if fake.Ran("pkg-config --cflags") {
		t.Error("flags queried after a failed version check")
	}
}

func TestProbeNotInstalledIsRecoverable(t *testing.T) {
	fake := execxtest.New(map[string]*execx.Result{
		"pkg-config --modversion MagickWand": execxtest.Fail(1, "Package MagickWand was not found in the pkg-config search path."),
	})
	p, buf := newProber(&config.Config{}, fake)

	_, err := p.Probe(context.Background())
	if err == nil || magicksys.IsFatal(err) {
		t.Fatalf("err = %v, want recoverable", err)
	}
	if !errors.Is(err, magicksys.ErrNotInstalled) {
		t.Errorf("err = %v, want ErrNotInstalled", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected directives %q", buf.String())
	}
}

func TestProbeFlagsFailureIsRecoverable(t *testing.T) {
	script := pkgConfigScript("7.1", "", true)
	script["pkg-config --cflags --libs MagickWand"] = execxtest.Fail(1, "broken .pc file")
	p, _ := newProber(&config.Config{}, execxtest.New(script))

	_, err := p.Probe(context.Background())
	if err == nil || magicksys.IsFatal(err) {
		t.Fatalf("err = %v, want recoverable", err)
	}
	var se *magicksys.SubprocessError
	if !errors.As(err, &se) || se.Stage != magicksys.StagePkgConfig {
		t.Errorf("err = %v, want wrapped pkg-config SubprocessError", err)
	}
}

func TestProbeMissingLibDirIsFatal(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	p, buf := newProber(&config.Config{
		LibDirs: []string{missing},
		Libs:    []string{"MagickWand-7.Q16"},
	}, execxtest.New(nil))

	_, err := p.Probe(context.Background())
	var me *magicksys.MissingDirectoryError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *MissingDirectoryError", err)
	}
	if me.What != "library" || me.Path != missing {
		t.Errorf("MissingDirectoryError = %+v", me)
	}
	if !magicksys.IsFatal(err) {
		t.Error("missing directory must be fatal")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected directives %q", buf.String())
	}
}

func TestProbeMissingIncludeDirAfterLibDirsEmitted(t *testing.T) {
	libDir := t.TempDir()
	missing := filepath.Join(libDir, "include")
	p, buf := newProber(&config.Config{
		LibDirs:     []string{libDir},
		IncludeDirs: []string{missing},
		Libs:        []string{"MagickWand-7.Q16"},
	}, execxtest.New(nil))

	_, err := p.Probe(context.Background())
	var me *magicksys.MissingDirectoryError
	if !errors.As(err, &me) || me.What != "include" {
		t.Fatalf("err = %v, want missing include directory", err)
	}
	if got, want := buf.String(), "magicksys:link-search=native="+libDir+"\n"; got != want {
		t.Errorf("directives = %q, want %q", got, want)
	}
}

func TestProbeArtifactsMissing(t *testing.T) {
	libDir := t.TempDir()
	touch(t, libDir, "libunrelated.so")
	p, _ := newProber(&config.Config{
		LibDirs: []string{libDir},
		Libs:    []string{"MagickWand-7.Q16"},
	}, execxtest.New(nil))

	_, err := p.Probe(context.Background())
	var ae *magicksys.ArtifactError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *ArtifactError", err)
	}
}

func TestPlatformDefaults(t *testing.T) {
	want := Defaults{
		IncludeDirs: []string{"/usr/local/include/ImageMagick-7"},
		LibDirs:     []string{"/usr/local/lib"},
		Libs:        []string{"MagickWand-7"},
	}
	if diff := cmp.Diff(want, PlatformDefaults("freebsd")); diff != "" {
		t.Errorf("freebsd defaults (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Defaults{}, PlatformDefaults("linux")); diff != "" {
		t.Errorf("linux defaults (-want +got):\n%s", diff)
	}
}

func TestProbeFreeBSDDefaultsFillUnsetFields(t *testing.T) {
	libDir, incDir := t.TempDir(), t.TempDir()
	touch(t, libDir, "libMagickWand-7.so")

	fake := execxtest.New(nil)
	p, _ := newProber(&config.Config{
		Target:      "freebsd",
		LibDirs:     []string{libDir},
		IncludeDirs: []string{incDir},
	}, fake)

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if diff := cmp.Diff([]string{"MagickWand-7"}, inst.Libs); diff != "" {
		t.Errorf("Libs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{libDir}, inst.LibDirs); diff != "" {
		t.Errorf("LibDirs (-want +got):\n%s", diff)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("subprocesses spawned: %v", fake.Commands())
	}
}

func TestProbeWindowsLibName(t *testing.T) {
	libDir := t.TempDir()
	touch(t, libDir, "CORE_RL_MagickWand_.lib")

	fake := execxtest.New(nil)
	p, buf := newProber(&config.Config{Target: "windows", LibDirs: []string{libDir}}, fake)

	inst, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if inst.Mode != linkmode.Static {
		t.Errorf("Mode = %v, want static", inst.Mode)
	}
	if !strings.Contains(buf.String(), "magicksys:link-lib=static=CORE_RL_MagickWand_\n") {
		t.Errorf("directives = %q", buf.String())
	}
	if len(fake.Calls) != 0 {
		t.Errorf("subprocesses spawned: %v", fake.Commands())
	}
}
