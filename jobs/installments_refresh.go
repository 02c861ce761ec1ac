package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// StatusRefresher persists the overdue status of past-due installments.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int64, error)
}

// ReportInvalidator bumps the cached report version.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// InstallmentsRefreshJob marks open past-due installments overdue.
type InstallmentsRefreshJob struct {
	Installments StatusRefresher
	Reports      ReportInvalidator
	Logger       *slog.Logger
}

// NewInstallmentsRefreshJob initialises the refresh handler.
func NewInstallmentsRefreshJob(installments StatusRefresher, reports ReportInvalidator, logger *slog.Logger) *InstallmentsRefreshJob {
	return &InstallmentsRefreshJob{Installments: installments, Reports: reports, Logger: logger}
}

// Handle executes the refresh.
func (j *InstallmentsRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Installments == nil {
		return errors.New("installments refresh: handler not configured")
	}
	var payload InstallmentsRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	changed, err := j.Installments.RefreshStatuses(ctx)
	if err != nil {
		j.logger().Error("installment status refresh failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("installment statuses refreshed", slog.Int64("marked_overdue", changed))

	if payload.BumpReports && changed > 0 && j.Reports != nil {
		if err := j.Reports.Bump(ctx); err != nil {
			j.logger().Warn("report cache bump failed", slog.Any("error", err))
		}
	}
	return nil
}

func (j *InstallmentsRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
