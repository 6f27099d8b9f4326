package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher refreshes a Manager on a cron schedule.
type Refresher struct {
	manager  *Manager
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRefresher creates a refresher for the standard five-field cron
// expression schedule.
func NewRefresher(manager *Manager, schedule string) *Refresher {
	return &Refresher{
		manager:  manager,
		schedule: schedule,
		cron:     cron.New(),
		logger:   manager.logger.With("component", "secrets.refresher"),
	}
}

// Start schedules refreshes until ctx is cancelled or Stop is called. An
// empty schedule does nothing.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.refresh(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule secret refresh: %w", err)
	}
	r.cron.Start()
	r.running = true
	r.logger.Info("secret refresh scheduled", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.manager.Refresh(ctx); err != nil {
		r.logger.Error("scheduled secret refresh failed", "error", err)
		return
	}
	r.logger.Debug("scheduled secret refresh completed")
}

// Stop halts the schedule and waits for a running refresh.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
}

// NextRun returns the next scheduled refresh, or the zero time.
func (r *Refresher) NextRun() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
