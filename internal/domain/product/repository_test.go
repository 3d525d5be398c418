package product

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
)

func newMockRepo(t *testing.T) (*Repository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	db := sqlx.NewDb(raw, "postgres")
	return NewRepository(db), db, mock
}

var productRowColumns = []string{
	"id", "seller_id", "title", "description", "price", "status",
	"is_boosted", "boosted_at", "boosted_until", "created_at", "updated_at",
}

func TestRepositoryCreateTx(t *testing.T) {
	repo, db, mock := newMockRepo(t)
	now := time.Now()
	p := &Product{ID: uuid.New(), SellerID: uuid.New(), Title: "Lamp", Price: 12.5, Status: StatusActive, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.SellerID, "Lamp", "", 12.5, "active", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(context.Background(), tx, p))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, _, mock := newMockRepo(t)
	mock.ExpectQuery("FROM products WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRepositoryListBoostedFiltersByWindow(t *testing.T) {
	repo, _, mock := newMockRepo(t)
	now := time.Now()
	boostedAt := now.Add(-time.Hour)
	until := now.Add(23 * time.Hour)

	mock.ExpectQuery("WHERE is_boosted AND boosted_until > \\$1 AND status = 'active'").
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(uuid.NewString(), uuid.NewString(), "Lamp", "", "12.50", "active", true, boostedAt, until, now, now))

	items, err := repo.ListBoosted(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].BoostActive(now))
	assert.InDelta(t, 12.5, items[0].Price, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateStatus(t *testing.T) {
	id := uuid.New()
	owner := uuid.New()
	now := time.Now()

	tests := []struct {
		name    string
		mockFn  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "owner updates",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status").WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "someone else's product",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("FROM products WHERE id").
					WillReturnRows(sqlmock.NewRows(productRowColumns).
						AddRow(id.String(), uuid.NewString(), "Lamp", "", "1", "active", false, nil, nil, now, now))
			},
			wantErr: ErrNotOwner,
		},
		{
			name: "missing product",
			mockFn: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("FROM products WHERE id").WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrProductNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, mock := newMockRepo(t)
			tt.mockFn(mock)

			err := repo.UpdateStatus(context.Background(), id, owner, StatusInactive)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
