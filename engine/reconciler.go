// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/luxfi/log"
)

// Reconciler periodically advances PROCESSING operations: it retries burn
// intents whose deposit has since finalized, mints whose attestation is
// ready, requotes post-mint swaps, and fails steps stuck past the timeout.
// One reconciler runs per process; the running flag keeps ticks from
// overlapping.
type Reconciler struct {
	engine   *Engine
	interval time.Duration
	log      log.Logger

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

func NewReconciler(e *Engine, interval time.Duration, logger log.Logger) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		engine:   e,
		interval: interval,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				r.Tick(ctx)
			}
		}
	}()
}

// Stop ends the tick loop. Safe to call more than once.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// Tick advances every PROCESSING operation once. It is a no-op when a
// previous tick is still in flight.
func (r *Reconciler) Tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug("reconciler tick skipped, previous tick still running")
		return
	}
	defer r.running.Store(false)

	e := r.engine
	ops, err := e.store.ListByStatus(OpProcessing)
	if err != nil {
		r.log.Error("reconciler could not list operations", "err", err)
		e.metrics.ReconcilerErrors.Inc()
		return
	}

	for _, op := range ops {
		if err := r.reconcileOne(ctx, op); err != nil {
			r.log.Error("reconcile failed", "operation", op.ID, "err", err)
			e.metrics.ReconcilerErrors.Inc()
		}
	}
	e.metrics.ReconcilerTicks.Inc()
}

func (r *Reconciler) reconcileOne(ctx context.Context, op *Operation) error {
	e := r.engine
	steps, err := e.store.GetSteps(op.ID)
	if err != nil {
		return err
	}

	// Burn intents stuck past the deadline fail the operation: the funding
	// deposit is presumed lost or reverted.
	now := e.now()
	for _, st := range steps {
		if st.Type == StepBurnIntent && st.Status == StepPending &&
			now.Sub(st.CreatedAt) > e.stepTimeout {
			if err := e.failStep(st, ErrStepTimeout.Error()); err != nil {
				return err
			}
			return e.refreshStatus(op, steps)
		}
	}

	if err := e.advance(ctx, op, steps); err != nil {
		return err
	}

	if err := r.liftSwaps(ctx, op, steps); err != nil {
		return err
	}

	return e.refreshStatus(op, steps)
}

// liftSwaps promotes PENDING post-mint swaps whose prerequisites are all
// terminal: each gets a fresh quote and moves to AWAITING_SIGNATURE so the
// user can sign the new call data. A quote failure is soft and retried next
// tick.
func (r *Reconciler) liftSwaps(ctx context.Context, op *Operation, steps []*Step) error {
	e := r.engine
	now := e.now()
	for i, st := range steps {
		if st.Type != StepLifiSwap || st.Status != StepPending || st.Swap == nil {
			continue
		}

		ready := true
		for _, prior := range steps[:i] {
			if !prior.Status.Terminal() {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}

		if now.Sub(st.CreatedAt) > e.stepTimeout {
			if err := e.failStep(st, "Timeout waiting for swap prerequisites"); err != nil {
				return err
			}
			continue
		}

		if err := e.requoteSwap(ctx, op, steps, st); err != nil {
			r.log.Warn("swap requote failed, will retry",
				"operation", op.ID,
				"step", st.StepIndex,
				"err", err)
			continue
		}
	}
	return nil
}
