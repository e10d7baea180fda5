// Package linkmode decides whether MagickWand is linked statically or dynamically.
package linkmode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/magicksys"
)

// Mode is how the consuming binary links the library.
type Mode int

const (
	Dynamic Mode = iota
	Static
)

func (m Mode) String() string {
	switch m {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Override interprets the IMAGE_MAGICK_STATIC value: "0" is Dynamic, any other
// non-empty value is Static, empty means no override.
func Override(v string) (Mode, bool) {
	switch v {
	case "":
		return Dynamic, false
	case "0":
		return Dynamic, true
	}
	return Static, true
}

// StaticNames returns the archive file names that satisfy a static link of lib.
func StaticNames(lib string) []string {
	return []string{"lib" + lib + ".a", lib + ".lib"}
}

// SharedNames returns the file names that satisfy a dynamic link of lib.
func SharedNames(lib string) []string {
	return []string{"lib" + lib + ".so", lib + ".dll", "lib" + lib + ".dylib"}
}

// Files collects the immediate entry names of every dir.
func Files(dirs []string) (map[string]bool, error) {
	files := make(map[string]bool)
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &magicksys.MissingDirectoryError{What: "library", Path: d}
			}
			return nil, fmt.Errorf("read %s: %w", d, err)
		}
		for _, e := range entries {
			files[e.Name()] = true
		}
	}
	return files, nil
}

// Detect resolves the link mode for libs found in libDirs. A non-empty override wins
// unconditionally; otherwise the directories are scanned once.
//
//	static only  -> Static
//	dynamic only -> Dynamic
//	both         -> Dynamic
//	neither      -> *magicksys.ArtifactError
func Detect(libDirs, libs []string, override string) (Mode, error) {
	if m, ok := Override(override); ok {
		return m, nil
	}
	files, err := Files(libDirs)
	if err != nil {
		return Dynamic, err
	}
	canStatic := satisfiesAll(files, libs, StaticNames)
	canDynamic := satisfiesAll(files, libs, SharedNames)

	switch {
	case canStatic && !canDynamic:
		return Static, nil
	case !canStatic && !canDynamic:
		return Dynamic, &magicksys.ArtifactError{LibDirs: libDirs, Libs: libs}
	}
	return Dynamic, nil
}

// HasStatic reports whether a static archive of lib exists directly in one of dirs.
func HasStatic(dirs []string, lib string) (string, bool) {
	for _, d := range dirs {
		for _, name := range StaticNames(lib) {
			p := filepath.Join(d, name)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

func satisfiesAll(files map[string]bool, libs []string, names func(string) []string) bool {
	for _, l := range libs {
		found := false
		for _, n := range names(l) {
			if files[n] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
