package product

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, seller_id, title, description, price, status,
	is_boosted, boosted_at, boosted_until, created_at, updated_at`

// Repository handles product database operations
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new product repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts p using tx, so the insert commits or rolls back with the
// token debit that pays for it.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *Product) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, title, description, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.SellerID, p.Title, p.Description, p.Price, string(p.Status), p.CreatedAt, p.UpdatedAt)
	return err
}

// GetByID returns a product by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListBySeller returns the seller's products, newest first, and the total count.
func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]Product, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products WHERE seller_id = $1`, sellerID); err != nil {
		return nil, 0, err
	}

	items := make([]Product, 0)
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+productColumns+`
		FROM products
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListBoosted returns active listings whose boost window is open at now,
// most recently boosted first. Expired boosts are excluded by the predicate,
// not by a write.
func (r *Repository) ListBoosted(ctx context.Context, now time.Time, limit int) ([]Product, error) {
	items := make([]Product, 0)
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_boosted AND boosted_until > $1 AND status = 'active'
		ORDER BY boosted_at DESC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatus changes the listing status when sellerID owns it.
func (r *Repository) UpdateStatus(ctx context.Context, id, sellerID uuid.UUID, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET status = $3, updated_at = now()
		WHERE id = $1 AND seller_id = $2
	`, id, sellerID, string(status))
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrNotOwner
}
