package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendaflow/vendaflow/internal/shared"
)

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a customer and returns its id.
func (r *Repository) Create(ctx context.Context, c Customer) (int64, error) {
	query := `
		INSERT INTO customers (name, phone, note)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query, c.Name, c.Phone, c.Note).Scan(&id)
	return id, err
}

// Get retrieves a customer by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := `
		SELECT id, name, phone, note, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Phone, &c.Note, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

// List returns customers ordered by name, optionally filtered by a
// case-insensitive name or phone match.
func (r *Repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, name, phone, note, created_at, updated_at
		FROM customers
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, req.Search, limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Note, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites customer contact details.
func (r *Repository) Update(ctx context.Context, id int64, c Customer) error {
	query := `
		UPDATE customers
		SET name = $1, phone = $2, note = $3, updated_at = now()
		WHERE id = $4
	`
	cmdTag, err := r.pool.Exec(ctx, query, c.Name, c.Phone, c.Note, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return nil
}
