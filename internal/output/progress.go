package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/torosent/perfrun/internal/metrics"
)

// ProgressReporter redraws a single status line while runs are executing.
// The last drawn line stays on screen after Stop; callers print the newline.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	writer    io.Writer

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	stop      chan struct{}
	finished  chan struct{}
	width     int // length of the previous line, for erasing leftovers
}

// NewProgressReporter creates a reporter that redraws every interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		writer:    writer,
		started:   make(chan struct{}),
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// Start begins redrawing in a background goroutine. Calling it again has no
// effect.
func (p *ProgressReporter) Start() {
	p.startOnce.Do(func() {
		close(p.started)
		go p.run()
	})
}

// Stop draws the final state and waits for the goroutine to exit. It is safe
// to call without Start and more than once.
func (p *ProgressReporter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		select {
		case <-p.started:
			<-p.finished
		default:
		}
	})
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.draw()
	for {
		select {
		case <-ticker.C:
			p.draw()
		case <-p.stop:
			p.draw()
			return
		}
	}
}

func (p *ProgressReporter) draw() {
	line := ProgressLine(p.collector.Snapshot())
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.width = len(line)
	fmt.Fprint(p.writer, "\r"+line+pad)
}

// ProgressLine renders a one-line progress summary.
func ProgressLine(s metrics.Snapshot) string {
	line := fmt.Sprintf("Runs: %d/%d | In flight: %d | Succeeded: %d | Failed: %d | Elapsed: %s",
		s.Done(), s.Total, s.InFlight, s.Succeeded, s.Failed, s.Elapsed.Round(time.Second))
	if n := len(s.Performance); n > 0 {
		line += fmt.Sprintf(" | Last score: %.1f", s.Performance[n-1]*100)
	}
	return line
}
