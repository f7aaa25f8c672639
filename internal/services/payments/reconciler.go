package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinobot/internal/infra/metrics"
	"go.uber.org/zap"
)

type CycleStats struct {
	Checked  int
	Credited int
	Failed   int
}

// Reconciler periodically settles pending invoices the gateway reports as
// paid.
type Reconciler struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

func NewReconciler(svc *Service, interval time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{
		svc:      svc,
		interval: interval,
		log:      log.Named("reconciler"),
	}
}

// Run runs a cycle every interval until ctx is done. Cycle errors are
// logged and never stop the loop.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciler started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			stats, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Error("reconcile cycle failed", zap.Error(err))
				continue
			}

			if stats.Checked > 0 {
				r.log.Debug("reconcile cycle done",
					zap.Int("checked", stats.Checked),
					zap.Int("credited", stats.Credited),
					zap.Int("failed", stats.Failed),
				)
			}
		}
	}
}

// RunOnce checks every pending invoice once. A failure on one invoice is
// counted and does not stop the others.
func (r *Reconciler) RunOnce(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	pending, err := r.svc.store.ListPendingInvoices(ctx)
	if err != nil {
		metrics.ReconcileCycles.WithLabelValues("failed").Inc()
		return stats, fmt.Errorf("list pending invoices: %w", err)
	}

	for _, inv := range pending {
		if ctx.Err() != nil {
			break
		}

		stats.Checked++

		credited, err := r.svc.check(ctx, inv, "reconciler")
		if err != nil {
			stats.Failed++

			if !errors.Is(err, context.Canceled) {
				r.log.Warn("invoice check failed",
					zap.String("invoice_id", inv.InvoiceID),
					zap.Int64("account_id", inv.AccountID),
					zap.Error(err),
				)
			}

			continue
		}

		if credited {
			stats.Credited++
		}
	}

	metrics.ReconcileCycles.WithLabelValues("ok").Inc()

	return stats, nil
}
