package boost

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/marketly/marketly-api/internal/domain/product"
)

// Repository writes boost windows on the products table.
type Repository struct {
	db       *sqlx.DB
	products *product.Repository
}

func NewRepository(db *sqlx.DB, products *product.Repository) *Repository {
	return &Repository{db: db, products: products}
}

// ActivateTx opens the boost window [now, until) with a compare-and-set that
// only matches an active, unboosted (or expired) product owned by sellerID.
// It runs inside the token transaction, after the account row is locked.
func (r *Repository) ActivateTx(ctx context.Context, tx *sqlx.Tx, productID, sellerID uuid.UUID, now, until time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET is_boosted = true, boosted_at = $3, boosted_until = $4, updated_at = $3
		WHERE id = $1
		  AND seller_id = $2
		  AND status = 'active'
		  AND (NOT is_boosted OR boosted_until <= $3)
	`, productID, sellerID, now, until)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	return diagnose(ctx, tx, productID, sellerID, now)
}

// diagnose explains why the compare-and-set matched nothing.
func diagnose(ctx context.Context, tx *sqlx.Tx, productID, sellerID uuid.UUID, now time.Time) error {
	var p product.Product
	err := tx.GetContext(ctx, &p, `
		SELECT id, seller_id, status, is_boosted, boosted_until
		FROM products
		WHERE id = $1
	`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return eligibility(&p, sellerID, now)
}

func eligibility(p *product.Product, sellerID uuid.UUID, now time.Time) error {
	switch {
	case p.SellerID != sellerID:
		return ErrNotOwner
	case !p.IsActive():
		return ErrProductInactive
	case p.BoostActive(now):
		return ErrAlreadyBoosted
	}
	return ErrNotEligible
}

// GetByID returns the product carrying the boost columns.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	p, err := r.products.GetByID(ctx, id)
	if errors.Is(err, product.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// ListExpiredBetween returns up to limit boosts whose window closed after
// the cursor and no later than to, ordered by (boosted_until, id).
func (r *Repository) ListExpiredBetween(ctx context.Context, after ExpiryCursor, to time.Time, limit int) ([]product.Product, error) {
	items := make([]product.Product, 0)
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, seller_id, title, description, price, status,
			is_boosted, boosted_at, boosted_until, created_at, updated_at
		FROM products
		WHERE is_boosted
			AND (boosted_until, id) > ($1, $2)
			AND boosted_until <= $3
		ORDER BY boosted_until, id
		LIMIT $4
	`, after.Until, after.ProductID, to, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}
