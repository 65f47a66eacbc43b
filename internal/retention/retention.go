// Package retention periodically deletes messages older than a configured
// period, on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// Purger deletes messages created before cutoff.
type Purger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Manager struct {
	cron   string
	period time.Duration
	store  Purger
	log    *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

func NewManager(cron string, period time.Duration, store Purger, log *slog.Logger) (*Manager, error) {
	if !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid retention cron %q", cron)
	}
	if period <= 0 {
		return nil, fmt.Errorf("retention period must be positive, got %s", period)
	}
	return &Manager{
		cron:   cron,
		period: period,
		store:  store,
		log:    log,
		now:    time.Now,
	}, nil
}

// Run schedules purges until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	m.log.Info("retention_enabled", "cron", m.cron, "period", m.period)
	for {
		next, err := gronx.NextTickAfter(m.cron, m.now(), false)
		if err != nil {
			m.log.Error("retention_nexttick_failed", "cron", m.cron, "error", err)
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if !sleep(ctx, time.Until(next)) {
			return
		}
		m.runJob(ctx)
	}
}

// RunOnce purges immediately and returns the number of deleted messages.
func (m *Manager) RunOnce(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.period)
	start := time.Now()
	n, err := m.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	m.log.Info("retention_run_done", "cutoff", cutoff, "deleted", n, "took", time.Since(start))
	return n, nil
}

// runJob skips a tick while the previous purge is still running.
func (m *Manager) runJob(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if _, err := m.RunOnce(ctx); err != nil {
		m.log.Error("retention_run_error", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
