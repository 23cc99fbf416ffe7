// Package runner drives the simulator's generators: every generator runs on
// its own interval and produces one batch of readings per patient per tick.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

// Writer receives generated readings.
type Writer interface {
	Write(r generator.Reading) error
}

type job struct {
	gen      generator.Generator
	interval time.Duration
}

// Runner schedules generators for patients 1..patients.
type Runner struct {
	out      Writer
	patients int
	jobs     []job
	now      func() time.Time
}

// New creates a Runner writing to out.
func New(out Writer, patients int) *Runner {
	return &Runner{out: out, patients: patients, now: time.Now}
}

// Add schedules g every interval. Call before Run.
func (r *Runner) Add(g generator.Generator, interval time.Duration) {
	r.jobs = append(r.jobs, job{gen: g, interval: interval})
}

// Run ticks every generator until ctx is cancelled. Each generator runs in
// its own goroutine, so a slow output delays only that generator.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range r.jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			t := time.NewTicker(j.interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					r.Tick(j.gen)
				}
			}
		}(j)
	}
	wg.Wait()
}

// Tick runs g once for every patient and returns how many readings it wrote.
// Write errors are the output's to report.
func (r *Runner) Tick(g generator.Generator) int {
	ts := r.now().UnixMilli()
	n := 0
	for id := 1; id <= r.patients; id++ {
		for _, rd := range g.Generate(id, ts) {
			r.out.Write(rd) //nolint:errcheck
			n++
		}
	}
	return n
}
