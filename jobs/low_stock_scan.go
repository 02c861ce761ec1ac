package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vendaflow/vendaflow/internal/inventory"
)

// LowStockLister returns products at or below their threshold.
type LowStockLister interface {
	ListLowStock(ctx context.Context) ([]inventory.Product, error)
}

// LowStockScanJob reports products that need restocking.
type LowStockScanJob struct {
	Inventory LowStockLister
	Logger    *slog.Logger
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(inv LowStockLister, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{Inventory: inv, Logger: logger}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	products, err := j.Inventory.ListLowStock(ctx)
	if err != nil {
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return err
	}

	reported := 0
	for _, p := range products {
		if payload.Limit > 0 && reported >= payload.Limit {
			break
		}
		j.logger().Warn("product low on stock",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int("quantity", p.Quantity),
			slog.Int("threshold", p.LowStockThreshold),
		)
		reported++
	}
	j.logger().Info("low stock scan completed", slog.Int("flagged", len(products)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
