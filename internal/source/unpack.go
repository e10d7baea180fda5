package source

import (
	"archive/tar"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"
)

// Unpack extracts the .tar.xz archive into dest, dropping the leading path
// component of every entry (imagemagick-7.1.1-29/configure -> configure).
// Entries that would land outside dest are rejected.
func Unpack(archive, dest string, log zerolog.Logger) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	xzReader, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("creating xz reader: %w", err)
	}
	tarReader := tar.NewReader(xzReader)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	var files, dirs, links int
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		rel := stripComponent(header.Name)
		if rel == "" {
			continue
		}
		target, err := within(dest, rel)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
			dirs++

		case tar.TypeSymlink:
			// Targets may only point below the link's own directory, so a chain of
			// links can never lead a later entry out of dest.
			if !localLink(header.Linkname) {
				return fmt.Errorf("archive entry %s links outside its directory: %s", header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory for symlink: %w", err)
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s -> %s: %w", target, header.Linkname, err)
			}
			links++

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, header.FileInfo().Mode().Perm())
			if err != nil {
				return fmt.Errorf("creating file %s: %w", target, err)
			}
			written, err := io.Copy(out, tarReader)
			out.Close()
			if err != nil {
				return fmt.Errorf("writing file %s: %w", target, err)
			}
			if written != header.Size {
				return fmt.Errorf("file size mismatch for %s: expected %d, got %d", target, header.Size, written)
			}
			files++

		default:
			log.Debug().Str("entry", header.Name).Msgf("skipping unsupported tar entry type %c", header.Typeflag)
		}
	}
	log.Debug().Int("files", files).Int("dirs", dirs).Int("symlinks", links).Msg("unpacked " + filepath.Base(archive))
	return nil
}

func stripComponent(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	_, rest, _ := strings.Cut(name, "/")
	return strings.Trim(rest, "/")
}

func localLink(target string) bool {
	if target == "" || filepath.IsAbs(target) {
		return false
	}
	t := filepath.Clean(filepath.FromSlash(target))
	return t != ".." && !strings.HasPrefix(t, ".."+string(filepath.Separator))
}

// within joins rel onto root and fails if the result escapes root.
func within(root, rel string) (string, error) {
	target := filepath.Join(root, rel)
	r, err := filepath.Rel(root, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %s escapes %s", rel, root)
	}
	return target, nil
}
