package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultWaitInterval is how often WaitReporter redraws its status line.
const DefaultWaitInterval = time.Second

// WaitReporter shows that a long call is still running. It also records
// retries, so it can be handed to the forwarder as its metrics recorder.
type WaitReporter struct {
	mu       sync.Mutex
	writer   io.Writer
	interval time.Duration
	label    string
	started  time.Time
	retries  int
	lastKind string

	stop chan struct{}
	done chan struct{}
}

// NewWaitReporter creates a reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewWaitReporter(w io.Writer) *WaitReporter {
	if w == nil {
		w = os.Stderr
	}
	return &WaitReporter{
		writer:   w,
		interval: DefaultWaitInterval,
	}
}

// Start begins redrawing the status line until Finish or Error.
func (p *WaitReporter) Start(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return
	}
	p.label = label
	p.started = time.Now()
	p.retries = 0
	p.lastKind = ""
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.render()

	go p.loop(p.stop, p.done)
}

func (p *WaitReporter) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.render()
			p.mu.Unlock()
		}
	}
}

// RecordRetry notes a failed attempt that will be retried.
func (p *WaitReporter) RecordRetry(kind string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.retries++
	p.lastKind = kind
	p.render()
}

// RecordRequest is called once the call finishes; the reporter has
// nothing to add until Finish.
func (p *WaitReporter) RecordRequest(string, string, int, time.Duration) {}

// Finish stops the status line and prints the total wait.
func (p *WaitReporter) Finish() {
	if !p.halt() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "\r✓ %s finished in %s\n", p.label, p.elapsed())
}

// Error stops the status line and reports err.
func (p *WaitReporter) Error(err error) {
	p.halt()
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

// halt stops the redraw goroutine and reports whether it was running.
func (p *WaitReporter) halt() bool {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return false
	}
	close(stop)
	<-done
	return true
}

func (p *WaitReporter) elapsed() time.Duration {
	return time.Since(p.started).Round(time.Second)
}

func (p *WaitReporter) render() {
	if p.started.IsZero() {
		return
	}
	line := fmt.Sprintf("\r⏳ %s... %s", p.label, p.elapsed())
	if p.retries > 0 {
		line += fmt.Sprintf(" (retry %d after %s)", p.retries, p.lastKind)
	}
	fmt.Fprint(p.writer, line)
}
