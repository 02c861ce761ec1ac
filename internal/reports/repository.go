package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DailyAmount is one aggregated day of income.
type DailyAmount struct {
	Day    time.Time
	Amount float64
}

// Repository runs aggregation queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// DailySaleIncome sums sale-time income per day across the range. Installment
// sales are excluded; their money only counts when a payment is collected.
func (r *Repository) DailySaleIncome(ctx context.Context, from, to time.Time) ([]DailyAmount, error) {
	query := `
		SELECT created_at::date AS day, SUM(COALESCE(actual_amount_received, total))
		FROM sales
		WHERE status = 'completed'
		  AND payment_method <> 'installment'
		  AND ($1::date IS NULL OR created_at::date >= $1)
		  AND ($2::date IS NULL OR created_at::date <= $2)
		GROUP BY day
		ORDER BY day
	`
	return r.queryDaily(ctx, query, dateParam(from), dateParam(to))
}

// DailyInstallmentIncome sums collected installment payments per day.
func (r *Repository) DailyInstallmentIncome(ctx context.Context, from, to time.Time) ([]DailyAmount, error) {
	query := `
		SELECT paid_at::date AS day, SUM(amount)
		FROM installment_payments
		WHERE ($1::date IS NULL OR paid_at::date >= $1)
		  AND ($2::date IS NULL OR paid_at::date <= $2)
		GROUP BY day
		ORDER BY day
	`
	return r.queryDaily(ctx, query, dateParam(from), dateParam(to))
}

// DailyExpectedIncome sums open installment balances per due day. Used for the
// projection rows of the report.
func (r *Repository) DailyExpectedIncome(ctx context.Context, from, to time.Time) ([]DailyAmount, error) {
	query := `
		SELECT due_date::date AS day, SUM(amount - paid_amount)
		FROM installments
		WHERE status IN ('pending', 'partial', 'overdue')
		  AND ($1::date IS NULL OR due_date::date >= $1)
		  AND ($2::date IS NULL OR due_date::date <= $2)
		GROUP BY day
		ORDER BY day
	`
	return r.queryDaily(ctx, query, dateParam(from), dateParam(to))
}

func (r *Repository) queryDaily(ctx context.Context, query string, args ...any) ([]DailyAmount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyAmount
	for rows.Next() {
		var d DailyAmount
		if err := rows.Scan(&d.Day, &d.Amount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
