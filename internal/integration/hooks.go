// Package integration connects the write paths to the read side: committed
// sale and payment events invalidate the cached reports.
package integration

import (
	"context"
	"log/slog"

	"github.com/vendaflow/vendaflow/internal/reports"
)

// Hooks reacts to committed domain events. It satisfies the Events interfaces
// of the sales and installments services.
type Hooks struct {
	logger *slog.Logger
	cache  *reports.Cache
}

// NewHooks builds Hooks.
func NewHooks(logger *slog.Logger, cache *reports.Cache) *Hooks {
	return &Hooks{logger: logger, cache: cache}
}

// SaleCommitted invalidates cached reports after a sale commits.
func (h *Hooks) SaleCommitted(ctx context.Context, saleID int64) {
	h.bump(ctx, "sale committed", "sale_id", saleID)
}

// SaleCancelled invalidates cached reports after a sale is voided.
func (h *Hooks) SaleCancelled(ctx context.Context, saleID int64) {
	h.bump(ctx, "sale cancelled", "sale_id", saleID)
}

// PaymentRecorded invalidates cached reports after an installment payment.
func (h *Hooks) PaymentRecorded(ctx context.Context, installmentID int64) {
	h.bump(ctx, "payment recorded", "installment_id", installmentID)
}

func (h *Hooks) bump(ctx context.Context, event string, args ...any) {
	if err := h.cache.Bump(ctx); err != nil {
		// stale entries still expire by TTL
		h.logger.Warn("report cache bump failed", append(args, "event", event, "error", err)...)
	}
}
