// Package archive bundles rendered files into a single zip.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ErrNoFiles is returned when there is nothing to put in the bundle.
var ErrNoFiles = errors.New("archive: no files")

// Entry is one named stream to store in a bundle.
type Entry struct {
	Name string
	Open func() (io.ReadCloser, error)
}

func newWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return zw
}

// Files writes every entry to dst as one zip, in the given order. Entry
// names must be unique.
func Files(entries []Entry, dst io.Writer) error {
	if len(entries) == 0 {
		return ErrNoFiles
	}
	seen := make(map[string]bool, len(entries))
	zw := newWriter(dst)
	for _, e := range entries {
		if seen[e.Name] {
			return fmt.Errorf("duplicate archive entry %q", e.Name)
		}
		seen[e.Name] = true
		if err := addEntry(zw, e); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addEntry(zw *zip.Writer, e Entry) error {
	src, err := e.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.Name, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", e.Name, err)
	}
	return nil
}

// Directory bundles every regular file under srcDir into a zip at dstPath.
// Entry names are paths relative to srcDir with forward slashes. The zip is
// built next to dstPath and renamed into place only once complete.
func Directory(srcDir, dstPath string) (int, error) {
	dstAbs, err := filepath.Abs(dstPath)
	if err != nil {
		return 0, err
	}

	var entries []Entry
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == dstAbs {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name: filepath.ToSlash(rel),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", srcDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	tmp, err := os.CreateTemp(filepath.Dir(dstAbs), ".archive-*.zip")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Files(entries, tmp); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), dstAbs); err != nil {
		return 0, fmt.Errorf("failed to move archive into place: %w", err)
	}
	return len(entries), nil
}
