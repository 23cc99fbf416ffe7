package ingest

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

// FileReader loads simulator file output into a Recorder.
type FileReader struct {
	rec *Recorder
}

// NewFileReader creates a FileReader feeding rec.
func NewFileReader(rec *Recorder) *FileReader {
	return &FileReader{rec: rec}
}

// ReadStats summarises one ReadDir call.
type ReadStats struct {
	Files    int
	Stored   int
	Rejected int
}

// ReadDir reads every *.txt file in dir. Lines that fail to parse or carry
// a label outside the record vocabulary are logged and counted; only an
// unreadable directory or file aborts the read.
func (f *FileReader) ReadDir(dir string) (ReadStats, error) {
	var stats ReadStats

	info, err := os.Stat(dir)
	if err != nil {
		return stats, fmt.Errorf("ingest: read dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("ingest: %q is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return stats, fmt.Errorf("ingest: glob %q: %w", dir, err)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := f.readFile(path, &stats); err != nil {
			return stats, err
		}
		stats.Files++
	}

	slog.Info("ingest: file directory loaded",
		"dir", dir,
		"files", stats.Files,
		"stored", stats.Stored,
		"rejected", stats.Rejected,
	)
	return stats, nil
}

func (f *FileReader) readFile(path string, stats *ReadStats) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ingest: open %q: %w", path, err)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	n := 0
	for sc.Scan() {
		n++
		text := sc.Text()
		if text == "" {
			continue
		}
		line, err := ParseFileLine(text)
		if err == nil {
			err = line.Store(f.rec)
		} else {
			metrics.RecordsRejected.WithLabelValues("malformed").Inc()
		}
		if err != nil {
			stats.Rejected++
			slog.Warn("ingest: skipping line", "file", path, "line", n, "err", err)
			continue
		}
		stats.Stored++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("ingest: scan %q: %w", path, err)
	}
	return nil
}
