package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes doc to dir/test-results.<format> using the temp-file,
// fsync, rename pattern, so readers never observe a partial file. It
// returns the path written.
func WriteFile(dir string, doc Document, format string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, FileName(format))

	tmp, err := os.CreateTemp(dir, ".test-results-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, doc, format); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return path, nil
}

// ReadFile decodes the export at path. The format is taken from the file
// extension.
func ReadFile(path string) (Document, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return Document{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Decode(bufio.NewReader(f), format)
}
