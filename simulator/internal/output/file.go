package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cardiowatch/cardiowatch/pkg/wire"
	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

// File appends readings to <dir>/<label>.txt. Files are opened on first use
// and kept open until Close.
type File struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFile creates dir if needed and returns a File writing into it.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %q: %w", dir, err)
	}
	return &File{dir: dir, files: make(map[string]*os.File)}, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Write(r generator.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, ok := f.files[r.Label]
	if !ok {
		path := filepath.Join(f.dir, r.Label+".txt")
		var err error
		fh, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("output: open %q: %w", path, err)
		}
		f.files[r.Label] = fh
	}
	_, err := fmt.Fprintln(fh, wire.FormatFileLine(r.PatientID, r.Timestamp, r.Label, r.Data))
	return err
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for label, fh := range f.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
		delete(f.files, label)
	}
	return first
}
