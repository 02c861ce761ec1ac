package installments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendaflow/vendaflow/internal/payment"
	"github.com/vendaflow/vendaflow/internal/platform/db"
	"github.com/vendaflow/vendaflow/internal/shared"
)

const installmentColumns = `
	id, sale_id, customer_id, sequence, amount, paid_amount, payment_method, due_date, status, created_at, updated_at
`

// Repository persists installments and payment events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Installment, error)
	SetPaid(ctx context.Context, id int64, paidAmount float64, status Status, method payment.Method) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func scanInstallment(row pgx.Row) (*Installment, error) {
	var i Installment
	err := row.Scan(
		&i.ID, &i.SaleID, &i.CustomerID, &i.Sequence, &i.Amount, &i.PaidAmount,
		&i.PaymentMethod, &i.DueDate, &i.Status, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Get retrieves an installment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Installment, error) {
	query := fmt.Sprintf(`SELECT %s FROM installments WHERE id = $1`, installmentColumns)
	inst, err := scanInstallment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: installment %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return inst, nil
}

// List returns installments matching the filter, soonest due first. The status
// filter matches the status as observed at asOf with due dates compared by
// calendar day, so a row due later today never shows up under overdue and
// vice versa.
func (r *Repository) List(ctx context.Context, req ListRequest, asOf time.Time) ([]Installment, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.SaleID != 0 {
		conditions = append(conditions, fmt.Sprintf("sale_id = $%d", argPos))
		args = append(args, req.SaleID)
		argPos++
	}
	if req.CustomerID != 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, req.CustomerID)
		argPos++
	}
	switch req.Status {
	case StatusPending:
		conditions = append(conditions, fmt.Sprintf(
			"status NOT IN ('paid', 'cancelled') AND paid_amount = 0 AND due_date::date >= $%d::date", argPos))
		args = append(args, asOf)
		argPos++
	case StatusPartial:
		conditions = append(conditions, fmt.Sprintf(
			"status NOT IN ('paid', 'cancelled') AND paid_amount > 0 AND paid_amount < amount AND due_date::date >= $%d::date", argPos))
		args = append(args, asOf)
		argPos++
	case StatusOverdue:
		conditions = append(conditions, fmt.Sprintf(
			"status NOT IN ('paid', 'cancelled') AND paid_amount < amount AND due_date::date < $%d::date", argPos))
		args = append(args, asOf)
		argPos++
	case StatusPaid, StatusCancelled:
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, req.Status)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM installments
		%s
		ORDER BY due_date, id
		LIMIT $%d OFFSET $%d
	`, installmentColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

// ListPayments returns payment events for an installment, oldest first.
func (r *Repository) ListPayments(ctx context.Context, installmentID int64) ([]Payment, error) {
	query := `
		SELECT id, installment_id, amount, method, note, paid_at
		FROM installment_payments
		WHERE installment_id = $1
		ORDER BY paid_at, id
	`
	rows, err := r.pool.Query(ctx, query, installmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InstallmentID, &p.Amount, &p.Method, &p.Note, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Summary aggregates open installment balances as observed at asOf. Partially
// paid rows count toward the bucket their due date puts them in.
func (r *Repository) Summary(ctx context.Context, asOf time.Time) (*Summary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE due_date::date >= $1::date),
			COALESCE(SUM(amount - paid_amount) FILTER (WHERE due_date::date >= $1::date), 0),
			COUNT(*) FILTER (WHERE due_date::date < $1::date),
			COALESCE(SUM(amount - paid_amount) FILTER (WHERE due_date::date < $1::date), 0),
			COUNT(*) FILTER (WHERE due_date::date >= $1::date AND due_date::date < $2::date),
			COALESCE(SUM(amount - paid_amount) FILTER (WHERE due_date::date >= $1::date AND due_date::date < $2::date), 0)
		FROM installments
		WHERE status NOT IN ('paid', 'cancelled')
	`
	weekEnd := asOf.Add(7 * 24 * time.Hour)
	var s Summary
	err := r.pool.QueryRow(ctx, query, asOf, weekEnd).Scan(
		&s.PendingCount, &s.PendingTotal,
		&s.OverdueCount, &s.OverdueTotal,
		&s.DueThisWeekCount, &s.DueThisWeekTotal,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkOverdue persists the overdue status for open past-due installments and
// returns how many rows changed. Run periodically so status filters stay cheap.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE installments
		SET status = 'overdue', updated_at = now()
		WHERE status IN ('pending', 'partial') AND due_date::date < $1::date
	`
	cmdTag, err := r.pool.Exec(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (*Installment, error) {
	query := fmt.Sprintf(`SELECT %s FROM installments WHERE id = $1 FOR UPDATE`, installmentColumns)
	inst, err := scanInstallment(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: installment %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return inst, nil
}

func (t *txRepo) SetPaid(ctx context.Context, id int64, paidAmount float64, status Status, method payment.Method) error {
	query := `
		UPDATE installments
		SET paid_amount = $1, status = $2, payment_method = $3, updated_at = now()
		WHERE id = $4
	`
	cmdTag, err := t.tx.Exec(ctx, query, paidAmount, status, method, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: installment %d", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	query := `
		INSERT INTO installment_payments (installment_id, amount, method, note, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query, p.InstallmentID, p.Amount, p.Method, p.Note, p.PaidAt).Scan(&id)
	return id, err
}
