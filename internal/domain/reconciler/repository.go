package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository persists how far each sweep has progressed.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// LoadWatermark returns the saved position of the named sweep. ok is false
// when the sweep has never completed.
func (r *Repository) LoadWatermark(ctx context.Context, name string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.GetContext(ctx, &at, `SELECT swept_to FROM sweep_watermarks WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// SaveWatermark records that the named sweep is complete up to at. The stored
// value never moves backwards.
func (r *Repository) SaveWatermark(ctx context.Context, name string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sweep_watermarks (name, swept_to, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET swept_to = GREATEST(sweep_watermarks.swept_to, EXCLUDED.swept_to),
			updated_at = now()
	`, name, at)
	return err
}
