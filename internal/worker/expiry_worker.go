package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiryReconciler closes sessions whose time has run out.
type ExpiryReconciler interface {
	ReconcileExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker periodically auto-submits expired sessions whose clients
// disconnected before their timer fired.
type ExpiryWorker struct {
	reconciler ExpiryReconciler
	interval   time.Duration
	limit      int
	log        zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(reconciler ExpiryReconciler, interval time.Duration, limit int, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		reconciler: reconciler,
		interval:   interval,
		limit:      limit,
		log:        log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs one reconcile pass per interval until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ExpiryWorker) runOnce(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	// Keep draining while full pages come back so a backlog clears in one tick.
	for {
		closed, err := w.reconciler.ReconcileExpired(passCtx, w.limit)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Reconcile pass failed")
			}
			return
		}
		if closed < w.limit {
			return
		}
	}
}
