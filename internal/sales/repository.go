package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendaflow/vendaflow/internal/installments"
	"github.com/vendaflow/vendaflow/internal/inventory"
	"github.com/vendaflow/vendaflow/internal/platform/db"
	"github.com/vendaflow/vendaflow/internal/shared"
)

const saleColumns = `
	id, reference, customer_id, payment_method, total, actual_amount_received,
	installment_count, status, created_at, cancelled_at
`

// pgForeignKeyViolation is the PostgreSQL error code for FK failures.
const pgForeignKeyViolation = "23503"

// Repository persists sales in PostgreSQL. Its transactional surface also
// touches the products, inventory_movements and installments tables so a
// commit is a single atomic unit.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the committer.
type TxRepository interface {
	InsertSale(ctx context.Context, s Sale) (int64, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (int64, error)
	DecrementProductStock(ctx context.Context, productID int64, quantity int) (before, after int, err error)
	IncrementProductStock(ctx context.Context, productID int64, quantity int) (before, after int, err error)
	InsertMovement(ctx context.Context, m inventory.Movement) (int64, error)
	InsertInstallment(ctx context.Context, inst installments.Installment) (int64, error)
	GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error)
	ListItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	SetSaleStatus(ctx context.Context, id int64, status SaleStatus, cancelledAt *time.Time) error
	CountSettledInstallments(ctx context.Context, saleID int64) (int, error)
	CancelOpenInstallments(ctx context.Context, saleID int64) (int64, error)
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

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(
		&s.ID, &s.Reference, &s.CustomerID, &s.Method, &s.Total, &s.ActualAmountReceived,
		&s.InstallmentCount, &s.Status, &s.CreatedAt, &s.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get retrieves a sale by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1`, saleColumns)
	s, err := scanSale(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return s, nil
}

// ListItems returns the frozen lines of a sale.
func (r *Repository) ListItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return listItems(ctx, r.pool, saleID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, saleID int64) ([]SaleItem, error) {
	query := `
		SELECT id, sale_id, product_id, product_name, unit_price, quantity, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaleItem
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(
			&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.Quantity, &item.Subtotal,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// List returns sales, newest first.
func (r *Repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.CustomerID != 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, req.CustomerID)
		argPos++
	}
	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, req.Status)
		argPos++
	}
	if !req.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, req.From)
		argPos++
	}
	if !req.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, req.To)
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
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM sales
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, saleColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertSale(ctx context.Context, s Sale) (int64, error) {
	query := `
		INSERT INTO sales (
			reference, customer_id, payment_method, total, actual_amount_received,
			installment_count, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		s.Reference, s.CustomerID, s.Method, s.Total, s.ActualAmountReceived,
		s.InstallmentCount, s.Status, s.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return 0, fmt.Errorf("%w: customer does not exist", shared.ErrValidation)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
	query := `
		INSERT INTO sale_items (sale_id, product_id, product_name, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		item.SaleID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.Subtotal,
	).Scan(&id)
	return id, err
}

// DecrementProductStock conditionally takes quantity units off a product. The
// guard in the WHERE clause makes oversell impossible even under concurrent
// commits.
func (t *txRepo) DecrementProductStock(ctx context.Context, productID int64, quantity int) (int, int, error) {
	query := `
		UPDATE products
		SET quantity = quantity - $1, updated_at = now()
		WHERE id = $2 AND quantity >= $1
		RETURNING quantity
	`
	var after int
	err := t.tx.QueryRow(ctx, query, quantity, productID).Scan(&after)
	if err == nil {
		return after + quantity, after, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, err
	}

	// no row matched: missing product or not enough stock
	var name string
	var available int
	err = t.tx.QueryRow(ctx, `SELECT name, quantity FROM products WHERE id = $1`, productID).Scan(&name, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	if err != nil {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("%w: product %q has %d units available, requested %d",
		shared.ErrInsufficientStock, name, available, quantity)
}

func (t *txRepo) IncrementProductStock(ctx context.Context, productID int64, quantity int) (int, int, error) {
	query := `
		UPDATE products
		SET quantity = quantity + $1, updated_at = now()
		WHERE id = $2
		RETURNING quantity
	`
	var after int
	err := t.tx.QueryRow(ctx, query, quantity, productID).Scan(&after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
		}
		return 0, 0, err
	}
	return after - quantity, after, nil
}

func (t *txRepo) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	query := `
		INSERT INTO inventory_movements (
			product_id, movement_type, quantity_change, quantity_before,
			quantity_after, reference_id, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		m.ProductID, m.Type, m.QuantityChange, m.QuantityBefore,
		m.QuantityAfter, m.ReferenceID, m.Note, m.CreatedAt,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertInstallment(ctx context.Context, inst installments.Installment) (int64, error) {
	query := `
		INSERT INTO installments (sale_id, customer_id, sequence, amount, paid_amount, due_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		inst.SaleID, inst.CustomerID, inst.Sequence, inst.Amount, inst.PaidAmount,
		inst.DueDate, inst.Status, inst.CreatedAt,
	).Scan(&id)
	return id, err
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1 FOR UPDATE`, saleColumns)
	s, err := scanSale(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return s, nil
}

func (t *txRepo) ListItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return listItems(ctx, t.tx, saleID)
}

func (t *txRepo) SetSaleStatus(ctx context.Context, id int64, status SaleStatus, cancelledAt *time.Time) error {
	query := `
		UPDATE sales
		SET status = $1, cancelled_at = $2
		WHERE id = $3
	`
	cmdTag, err := t.tx.Exec(ctx, query, status, cancelledAt, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) CountSettledInstallments(ctx context.Context, saleID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM installments
		WHERE sale_id = $1 AND (status = 'paid' OR paid_amount > 0)
	`
	var n int
	err := t.tx.QueryRow(ctx, query, saleID).Scan(&n)
	return n, err
}

func (t *txRepo) CancelOpenInstallments(ctx context.Context, saleID int64) (int64, error) {
	query := `
		UPDATE installments
		SET status = 'cancelled', updated_at = now()
		WHERE sale_id = $1 AND status IN ('pending', 'partial', 'overdue')
	`
	cmdTag, err := t.tx.Exec(ctx, query, saleID)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
