package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/cardiowatch/cardiowatch/pkg/wire"
	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

// Console prints readings in the file line format, one per line.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Write(r generator.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, wire.FormatFileLine(r.PatientID, r.Timestamp, r.Label, r.Data))
	return err
}

func (c *Console) Close() error { return nil }
