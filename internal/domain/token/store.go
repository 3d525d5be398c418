package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ExecFunc is the paid-for action run inside the debiting transaction. It
// must use tx for its writes so that they commit or roll back with the debit.
type ExecFunc func(ctx context.Context, tx *sqlx.Tx) error

// Store persists accounts and the ledger.
type Store interface {
	// CreateAccount inserts acc unless the seller already has an account and,
	// only when it inserted, appends bonus in the same transaction.
	CreateAccount(ctx context.Context, acc *Account, bonus *Transaction) (bool, error)
	GetAccount(ctx context.Context, sellerID uuid.UUID) (*Account, error)

	// WithAccountLock runs fn while holding the seller's account row lock.
	// fn's writes commit together when it returns nil and roll back otherwise.
	WithAccountLock(ctx context.Context, sellerID uuid.UUID, fn func(ctx context.Context, tx AccountTx) error) error

	GetPurchase(ctx context.Context, reference string) (*Transaction, error)
	ListTransactions(ctx context.Context, sellerID uuid.UUID, p Pagination) ([]Transaction, int, error)
	SearchTransactions(ctx context.Context, f SearchFilters) ([]Transaction, int, error)
	ListExpiredFreePools(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// AccountTx is the view of a locked account inside WithAccountLock.
type AccountTx interface {
	// Account is the locked row as read at lock time.
	Account() *Account
	// SQL is the underlying transaction, nil for stores that are not SQL backed.
	SQL() *sqlx.Tx
	SaveAccount(ctx context.Context, acc *Account) error
	AppendTransaction(ctx context.Context, t *Transaction) error
	LockPurchase(ctx context.Context, reference string) (*Transaction, error)
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status TxStatus) error
}
