package boost

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketly/marketly-api/internal/domain/product"
)

func TestActivateTx(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(24 * time.Hour)
	productID := uuid.New()
	sellerID := uuid.New()
	running := now.Add(time.Hour)

	diagRow := func(owner uuid.UUID, status string, boosted bool, boostedUntil interface{}) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "seller_id", "status", "is_boosted", "boosted_until"}).
			AddRow(productID.String(), owner.String(), status, boosted, boostedUntil)
	}

	tests := []struct {
		name    string
		mockFn  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "window opened",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products").
					WithArgs(productID, sellerID, now, until).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already boosted",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT id, seller_id, status, is_boosted, boosted_until").
					WillReturnRows(diagRow(sellerID, "active", true, running))
			},
			wantErr: ErrAlreadyBoosted,
		},
		{
			name: "inactive",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT id, seller_id, status").
					WillReturnRows(diagRow(sellerID, "inactive", false, nil))
			},
			wantErr: ErrProductInactive,
		},
		{
			name: "not owner",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT id, seller_id, status").
					WillReturnRows(diagRow(uuid.New(), "active", false, nil))
			},
			wantErr: product.ErrNotOwner,
		},
		{
			name: "missing",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT id, seller_id, status").WillReturnError(sql.ErrNoRows)
			},
			wantErr: product.ErrProductNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer raw.Close()
			db := sqlx.NewDb(raw, "postgres")
			repo := NewRepository(db, product.NewRepository(db))

			mock.ExpectBegin()
			tt.mockFn(mock)
			mock.ExpectRollback()

			tx, err := db.Beginx()
			require.NoError(t, err)

			err = repo.ActivateTx(context.Background(), tx, productID, sellerID, now, until)
			_ = tx.Rollback()

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrNotEligible)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListExpiredBetween(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")
	repo := NewRepository(db, product.NewRepository(db))

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Minute)

	mock.ExpectQuery("\\(boosted_until, id\\) > \\(\\$1, \\$2\\)").
		WithArgs(from, lastProductID, to, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, err := repo.ListExpiredBetween(context.Background(), CursorAt(from), to, 100)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
