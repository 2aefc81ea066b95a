// Package archive packs a directory tree into a single archive file. The
// format follows the output extension: zip, tar.gz, tar.zst or 7z, the last
// one through an external 7z executable.
package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies an archive container.
type Format string

const (
	// FormatZip is a deflate zip archive.
	FormatZip Format = "zip"
	// FormatTarGz is a gzip-compressed tarball.
	FormatTarGz Format = "tar.gz"
	// FormatTarZst is a zstd-compressed tarball.
	FormatTarZst Format = "tar.zst"
	// Format7z is a 7-Zip archive produced by the 7z executable.
	Format7z Format = "7z"
)

var (
	// ErrUnsupportedFormat is returned for output paths with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrSevenZipUnavailable is returned when a 7z archive is requested without the executable.
	ErrSevenZipUnavailable = errors.New("7z executable not available")
	// ErrNotDirectory is returned when the source is not a directory.
	ErrNotDirectory = errors.New("archive source is not a directory")
)

// Ext returns the file extension for f, including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ParseFormat maps a config value such as "zip" or "tgz" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "zip":
		return FormatZip, nil
	case "tar.gz", "tgz":
		return FormatTarGz, nil
	case "tar.zst", "tzst":
		return FormatTarZst, nil
	case "7z":
		return Format7z, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromPath infers the format from an output path's extension.
func FormatFromPath(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return FormatTarZst, nil
	case strings.HasSuffix(lower, ".7z"):
		return Format7z, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Writer creates archives.
type Writer struct {
	sevenZipPath string
}

// NewWriter creates a Writer. sevenZipPath may be empty when 7z is not installed.
func NewWriter(sevenZipPath string) *Writer {
	return &Writer{sevenZipPath: sevenZipPath}
}

// Supports returns true if the Writer can produce f.
func (w *Writer) Supports(f Format) bool {
	switch f {
	case FormatZip, FormatTarGz, FormatTarZst:
		return true
	case Format7z:
		return w.sevenZipPath != ""
	default:
		return false
	}
}

// Create archives sourceDir into output. Entries are named relative to the
// parent of sourceDir, so the archive unpacks into a folder of the same name.
// A partial output is removed on failure.
func (w *Writer) Create(ctx context.Context, sourceDir, output string) (err error) {
	format, err := FormatFromPath(output)
	if err != nil {
		return err
	}
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, sourceDir)
	}

	if format == Format7z {
		return w.create7z(ctx, sourceDir, output)
	}

	out, err := os.Create(output) // #nosec G304 - output is chosen by the caller's naming step
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(output)
		}
	}()

	switch format {
	case FormatZip:
		return writeZip(ctx, out, sourceDir)
	case FormatTarGz:
		gz := gzip.NewWriter(out)
		if err := writeTar(ctx, gz, sourceDir); err != nil {
			_ = gz.Close()
			return err
		}
		return gz.Close()
	case FormatTarZst:
		zw, err := zstd.NewWriter(out)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		if err := writeTar(ctx, zw, sourceDir); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// walk visits every entry under root with its archive name.
func walk(ctx context.Context, root string, fn func(path, name string, d fs.DirEntry) error) error {
	parent := filepath.Dir(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel), d)
	})
}

func writeZip(ctx context.Context, w io.Writer, root string) error {
	zw := zip.NewWriter(w)
	err := walk(ctx, root, func(path, name string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		if d.IsDir() {
			hdr.Name += "/"
			_, err = zw.CreateHeader(hdr)
			return err
		}
		hdr.Method = zip.Deflate
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		return copyFile(entry, path)
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("write zip: %w", err)
	}
	return zw.Close()
}

func writeTar(ctx context.Context, w io.Writer, root string) error {
	tw := tar.NewWriter(w)
	err := walk(ctx, root, func(path, name string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return copyFile(tw, path)
	})
	if err != nil {
		_ = tw.Close()
		return fmt.Errorf("write tar: %w", err)
	}
	return tw.Close()
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path) // #nosec G304 - path comes from walking the source tree
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(dst, f)
	return err
}

func (w *Writer) create7z(ctx context.Context, sourceDir, output string) error {
	if w.sevenZipPath == "" {
		return ErrSevenZipUnavailable
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	// #nosec G204 - sevenZipPath is set by configuration, not user input
	cmd := exec.CommandContext(ctx, w.sevenZipPath, "a", "-t7z", "-y", absOut, filepath.Base(sourceDir))
	cmd.Dir = filepath.Dir(sourceDir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(absOut)
		if ctx.Err() != nil {
			return fmt.Errorf("7z cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("7z failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
