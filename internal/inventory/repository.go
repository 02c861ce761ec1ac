package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendaflow/vendaflow/internal/platform/db"
	"github.com/vendaflow/vendaflow/internal/shared"
)

// Repository persists products and stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CreateProduct(ctx context.Context, p Product) (int64, error)
	GetProductForUpdate(ctx context.Context, id int64) (*Product, error)
	SetProductQuantity(ctx context.Context, id int64, quantity int) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
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

// GetProduct retrieves a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	query := `
		SELECT id, name, sale_price, cost_price, quantity, low_stock_threshold, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var p Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SalePrice, &p.CostPrice, &p.Quantity,
		&p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts returns products ordered by name.
func (r *Repository) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, name, sale_price, cost_price, quantity, low_stock_threshold, created_at, updated_at
		FROM products
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.SalePrice, &p.CostPrice, &p.Quantity,
			&p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListLowStock returns products at or below their low stock threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]Product, error) {
	query := `
		SELECT id, name, sale_price, cost_price, quantity, low_stock_threshold, created_at, updated_at
		FROM products
		WHERE quantity <= low_stock_threshold
		ORDER BY quantity, name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.SalePrice, &p.CostPrice, &p.Quantity,
			&p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListMovements returns the audit trail, newest first.
func (r *Repository) ListMovements(ctx context.Context, req ListMovementsRequest) ([]Movement, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.ProductID != 0 {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argPos))
		args = append(args, req.ProductID)
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
		limit = 200
	}
	query := fmt.Sprintf(`
		SELECT id, product_id, movement_type, quantity_change, quantity_before,
		       quantity_after, reference_id, note, created_at
		FROM inventory_movements
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, whereClause, argPos)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(
			&m.ID, &m.ProductID, &m.Type, &m.QuantityChange, &m.QuantityBefore,
			&m.QuantityAfter, &m.ReferenceID, &m.Note, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (t *txRepo) CreateProduct(ctx context.Context, p Product) (int64, error) {
	query := `
		INSERT INTO products (name, sale_price, cost_price, quantity, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		p.Name, p.SalePrice, p.CostPrice, p.Quantity, p.LowStockThreshold,
	).Scan(&id)
	return id, err
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, id int64) (*Product, error) {
	query := `
		SELECT id, name, sale_price, cost_price, quantity, low_stock_threshold, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`
	var p Product
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SalePrice, &p.CostPrice, &p.Quantity,
		&p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (t *txRepo) SetProductQuantity(ctx context.Context, id int64, quantity int) error {
	query := `
		UPDATE products
		SET quantity = $1, updated_at = now()
		WHERE id = $2
	`
	cmdTag, err := t.tx.Exec(ctx, query, quantity, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
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
