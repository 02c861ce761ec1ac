// Package jobs holds the background task definitions and the Asynq worker
// wiring. Two periodic jobs run: the installment status refresh and the low
// stock scan.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInstallmentsRefresh persists the overdue status of past-due installments.
	TaskInstallmentsRefresh = "installments:refresh_statuses"
	// TaskLowStockScan reports products at or below their threshold.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// InstallmentsRefreshPayload configures the status refresh run.
type InstallmentsRefreshPayload struct {
	// BumpReports invalidates the cached reports when rows changed.
	BumpReports bool `json:"bump_reports"`
}

// NewInstallmentsRefreshTask constructs an Asynq task.
func NewInstallmentsRefreshTask(payload InstallmentsRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInstallmentsRefresh, data), nil
}

// LowStockScanPayload configures the low stock scan run.
type LowStockScanPayload struct {
	// Limit caps how many products are reported per run. Zero means all.
	Limit int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}
