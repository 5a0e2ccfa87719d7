package utils

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tj/go-spin"
)

// ProgressTracker prints pipeline stage progress on one terminal line with
// a spinner. Step matches pipeline.Progress.
type ProgressTracker struct {
	Name      string
	StartTime time.Time

	out     io.Writer
	spinner *spin.Spinner
	mu      sync.Mutex
	step    int
	total   int
}

func NewProgressTracker(name string, out io.Writer) *ProgressTracker {
	return &ProgressTracker{
		Name:      name,
		StartTime: time.Now(),
		out:       out,
		spinner:   spin.New(),
	}
}

// Step records that stage step of total is starting.
func (pt *ProgressTracker) Step(step, total int, stage string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.step, pt.total = step, total
	fmt.Fprintf(pt.out, "\r\033[K%s %s: [%d/%d] %s (%s)",
		pt.spinner.Next(), pt.Name, step, total, stage, time.Since(pt.StartTime).Round(time.Millisecond))
}

// GetProgress returns the current step, the total and the percentage done.
func (pt *ProgressTracker) GetProgress() (int, int, float64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.total == 0 {
		return 0, 0, 0
	}
	return pt.step, pt.total, float64(pt.step) / float64(pt.total) * 100
}

// Done ends the progress line.
func (pt *ProgressTracker) Done() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	fmt.Fprintf(pt.out, "\r\033[K%s: finished in %s\n", pt.Name, time.Since(pt.StartTime).Round(time.Millisecond))
}
