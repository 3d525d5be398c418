package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/marketly/marketly-api/internal/pkg/database"
)

const (
	queryTimeout = 3 * time.Second
	txTimeout    = 10 * time.Second
)

// Postgres error codes that mean "someone else holds or changed the row".
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

const accountColumns = `seller_id, token_balance, free_tokens_count, paid_tokens_count,
	free_tokens_expires_at, version, created_at, updated_at`

const transactionColumns = `id, seller_id, type, tokens_amount, price_paid, payment_method,
	payment_reference, status, product_id, reason, actor_id, created_at`

// Repository is the Postgres Store.
type Repository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

func NewRepository(db *sqlx.DB, lockTimeout time.Duration) *Repository {
	return &Repository{db: db, lockTimeout: lockTimeout}
}

// dbError classifies a driver error raised by a ledger statement.
func dbError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConcurrentModification, op)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

func (r *Repository) CreateAccount(ctx context.Context, acc *Account, bonus *Transaction) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created := false
	err := database.InTx(ctx2, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx2, `
			INSERT INTO seller_token_accounts (
				seller_id, token_balance, free_tokens_count, paid_tokens_count, free_tokens_expires_at, version
			)
			VALUES ($1, $2, $3, $4, $5, 1)
			ON CONFLICT (seller_id) DO NOTHING
		`, acc.SellerID, acc.TokenBalance, acc.FreeTokens, acc.PaidTokens, acc.FreeExpiresAt)
		if err != nil {
			return err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		created = true
		if bonus == nil {
			return nil
		}
		return insertTransaction(ctx2, tx, bonus)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return false, err
		}
		return false, dbError("create account", err)
	}

	return created, nil
}

func (r *Repository) GetAccount(ctx context.Context, sellerID uuid.UUID) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acc Account
	err := r.db.GetContext(ctx2, &acc, `SELECT `+accountColumns+` FROM seller_token_accounts WHERE seller_id = $1`, sellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, dbError("get account", err)
	}
	return &acc, nil
}

// WithAccountLock serializes all writers of one seller account on its row lock.
// The transaction runs detached from the caller's cancellation and is bounded
// by txTimeout, so an abandoned request cannot interrupt it half way.
func (r *Repository) WithAccountLock(ctx context.Context, sellerID uuid.UUID, fn func(ctx context.Context, tx AccountTx) error) error {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(txCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return dbError("begin tx", err)
	}
	defer tx.Rollback()

	if err := database.SetLockTimeout(txCtx, tx, r.lockTimeout.Milliseconds()); err != nil {
		return dbError("set lock timeout", err)
	}

	var acc Account
	err = tx.GetContext(txCtx, &acc, `SELECT `+accountColumns+` FROM seller_token_accounts WHERE seller_id = $1 FOR UPDATE`, sellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	if err != nil {
		return dbError("lock account", err)
	}

	if err := fn(txCtx, &pgAccountTx{tx: tx, account: &acc}); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return dbError("apply", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbError("commit tx", err)
	}
	return nil
}

func (r *Repository) GetPurchase(ctx context.Context, reference string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `
		SELECT `+transactionColumns+`
		FROM token_transactions
		WHERE payment_reference = $1 AND type = 'purchase'
	`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, dbError("get purchase", err)
	}
	return &t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, sellerID uuid.UUID, p Pagination) ([]Transaction, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	offset := p.Normalize()

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM token_transactions WHERE seller_id = $1`, sellerID); err != nil {
		return nil, 0, dbError("count transactions", err)
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT `+transactionColumns+`
		FROM token_transactions
		WHERE seller_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, sellerID, p.Limit, offset)
	if err != nil {
		return nil, 0, dbError("list transactions", err)
	}

	return transactions, total, nil
}

func (r *Repository) SearchTransactions(ctx context.Context, f SearchFilters) ([]Transaction, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := " WHERE 1=1"
	args := make([]interface{}, 0, 7)
	idx := 1

	if f.SellerID != nil {
		where += fmt.Sprintf(" AND seller_id = $%d", idx)
		args = append(args, *f.SellerID)
		idx++
	}
	if f.Type != nil && *f.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, string(*f.Type))
		idx++
	}
	if f.Status != nil && *f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, string(*f.Status))
		idx++
	}
	if f.DateFrom != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *f.DateFrom)
		idx++
	}
	if f.DateTo != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *f.DateTo)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM token_transactions`+where, args...); err != nil {
		return nil, 0, dbError("count search", err)
	}

	offset := f.Pagination.Normalize()
	query := strings.TrimSpace(`SELECT `+transactionColumns+` FROM token_transactions`+where) +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, query, args...); err != nil {
		return nil, 0, dbError("search transactions", err)
	}

	return transactions, total, nil
}

func (r *Repository) ListExpiredFreePools(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx2, &ids, `
		SELECT seller_id
		FROM seller_token_accounts
		WHERE free_tokens_count > 0 AND free_tokens_expires_at <= $1
		ORDER BY free_tokens_expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, dbError("list expired free pools", err)
	}
	return ids, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (
			id, seller_id, type, tokens_amount, price_paid, payment_method,
			payment_reference, status, product_id, reason, actor_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.SellerID, string(t.Type), t.TokensAmount, t.PricePaid, t.PaymentMethod,
		t.PaymentReference, string(t.Status), t.ProductID, t.Reason, t.ActorID, t.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicateReference
		}
		return dbError("insert transaction", err)
	}
	return nil
}

// pgAccountTx is the AccountTx handed to WithAccountLock callbacks.
type pgAccountTx struct {
	tx      *sqlx.Tx
	account *Account
}

func (t *pgAccountTx) Account() *Account { return t.account }

func (t *pgAccountTx) SQL() *sqlx.Tx { return t.tx }

// SaveAccount writes acc back guarded by its version.
func (t *pgAccountTx) SaveAccount(ctx context.Context, acc *Account) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE seller_token_accounts
		SET token_balance = $2,
		    free_tokens_count = $3,
		    paid_tokens_count = $4,
		    free_tokens_expires_at = $5,
		    version = version + 1,
		    updated_at = now()
		WHERE seller_id = $1 AND version = $6
	`, acc.SellerID, acc.TokenBalance, acc.FreeTokens, acc.PaidTokens, acc.FreeExpiresAt, acc.Version)
	if err != nil {
		return dbError("update account", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return dbError("rows affected", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}

	acc.Version++
	return nil
}

func (t *pgAccountTx) AppendTransaction(ctx context.Context, row *Transaction) error {
	return insertTransaction(ctx, t.tx, row)
}

func (t *pgAccountTx) LockPurchase(ctx context.Context, reference string) (*Transaction, error) {
	var row Transaction
	err := t.tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM token_transactions
		WHERE payment_reference = $1 AND type = 'purchase' AND seller_id = $2
		FOR UPDATE
	`, reference, t.account.SellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, dbError("lock purchase", err)
	}
	return &row, nil
}

func (t *pgAccountTx) SetTransactionStatus(ctx context.Context, id uuid.UUID, status TxStatus) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE token_transactions
		SET status = $2
		WHERE id = $1 AND type = 'purchase' AND status = 'pending'
	`, id, string(status))
	if err != nil {
		return dbError("update transaction status", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return dbError("rows affected", err)
	}
	if rows == 0 {
		return ErrPurchaseNotPending
	}
	return nil
}
