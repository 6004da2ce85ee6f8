package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	maxFileSize  = 100 * 1024 * 1024  // 100 MB per file
	maxTotalSize = 1024 * 1024 * 1024 // 1 GB total extracted
	maxFileCount = 50000              // maximum number of entries in archive
)

// ExtractTarGz unpacks a gzipped tarball, the format npm publishes, to a
// temp directory. Returns the path to the extracted directory and a cleanup
// function that removes it.
// Validates all paths to prevent path traversal, skips links and special
// files, and enforces size and entry limits.
func ExtractTarGz(data []byte, prefix string) (dir string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "tsexports-"+sanitizePrefix(prefix)+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanupFn := func() { os.RemoveAll(tmpDir) }

	if err := extract(data, tmpDir); err != nil {
		cleanupFn()
		return "", nil, err
	}
	return tmpDir, cleanupFn, nil
}

func extract(data []byte, tmpDir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gz.Close()

	resolvedBase, err := filepath.Abs(tmpDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	tr := tar.NewReader(gz)
	var totalExtracted int64
	count := 0

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar archive: %w", err)
		}

		count++
		if count > maxFileCount {
			return fmt.Errorf("tar archive contains more than %d entries", maxFileCount)
		}

		target := filepath.Join(tmpDir, filepath.FromSlash(hdr.Name))

		// Ensure the resolved path stays within tmpDir.
		resolvedTarget, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", hdr.Name, err)
		}
		if !strings.HasPrefix(resolvedTarget, resolvedBase+string(os.PathSeparator)) && resolvedTarget != resolvedBase {
			return fmt.Errorf("tar entry attempts path traversal: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
			continue
		case tar.TypeReg:
		default:
			// Symlinks, hard links, devices and global headers are skipped.
			continue
		}

		if hdr.Size > maxFileSize {
			return fmt.Errorf("file %s exceeds maximum size of %s", hdr.Name, humanize.IBytes(maxFileSize))
		}

		// npm tarballs often omit directory entries.
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", hdr.Name, err)
		}

		n, err := writeFile(target, tr)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
		if n > maxFileSize {
			return fmt.Errorf("file %s exceeds maximum size of %s", hdr.Name, humanize.IBytes(maxFileSize))
		}

		totalExtracted += n
		if totalExtracted > maxTotalSize {
			return fmt.Errorf("total extracted size exceeds maximum of %s", humanize.IBytes(maxTotalSize))
		}
	}
}

func writeFile(target string, r io.Reader) (int64, error) {
	outFile, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	defer outFile.Close()

	return io.Copy(outFile, io.LimitReader(r, maxFileSize+1))
}

func sanitizePrefix(prefix string) string {
	return strings.NewReplacer("/", "_", "@", "", string(os.PathSeparator), "_").Replace(prefix)
}
