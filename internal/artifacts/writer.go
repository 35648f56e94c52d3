// Package artifacts writes the JSON output files. Writes are atomic: content
// lands in a temp file in the target directory and is renamed into place, so
// a crashed run never leaves a half-written artifact behind.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists named JSON artifacts into one output directory.
type Writer struct {
	dir string
}

// NewWriter ensures the output directory exists.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write marshals payload with indentation and atomically replaces name in the
// output directory.
func (w *Writer) Write(name string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling artifact %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing artifact %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(w.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error renaming artifact %s: %w", name, err)
	}
	return nil
}
