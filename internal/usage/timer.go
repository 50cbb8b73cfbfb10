package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voicedeck/voicedeck/internal/metrics"
)

// Timer periodically runs ledger reconciliation in detect-only mode.
// Repair stays an explicit admin action.
type Timer struct {
	reconciler *Reconciler
	interval   time.Duration
	logger     *slog.Logger
	stop       chan struct{}
	running    atomic.Bool
}

// NewTimer creates a new reconciliation timer.
func NewTimer(reconciler *Reconciler, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Timer{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the periodic reconciliation loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeRun(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in reconciliation timer", "panic", fmt.Sprint(r))
		}
	}()

	if _, err := t.reconciler.ReconcileAll(ctx, false); err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		t.logger.Warn("reconciliation run failed", "error", err)
		return
	}
	metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
}
