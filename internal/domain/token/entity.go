package token

import (
	"time"

	"github.com/google/uuid"
)

// TxType is the kind of balance-affecting event a ledger row records.
type TxType string

const (
	TxTypePurchase    TxType = "purchase"
	TxTypeUsage       TxType = "usage"
	TxTypeBoost       TxType = "boost"
	TxTypeTrialBonus  TxType = "trial_bonus"
	TxTypeAdminCredit TxType = "admin_credit"
	TxTypeAdminDebit  TxType = "admin_debit"
)

// Valid reports whether t is a known type.
func (t TxType) Valid() bool {
	switch t {
	case TxTypePurchase, TxTypeUsage, TxTypeBoost, TxTypeTrialBonus, TxTypeAdminCredit, TxTypeAdminDebit:
		return true
	}
	return false
}

// TxStatus moves pending -> completed | failed for purchases only.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// Account is a seller's token balance, split into an expiring free pool and
// a non-expiring paid pool. TokenBalance always equals FreeTokens + PaidTokens.
type Account struct {
	SellerID      uuid.UUID  `db:"seller_id" json:"seller_id"`
	TokenBalance  int        `db:"token_balance" json:"token_balance"`
	FreeTokens    int        `db:"free_tokens_count" json:"free_tokens_count"`
	PaidTokens    int        `db:"paid_tokens_count" json:"paid_tokens_count"`
	FreeExpiresAt *time.Time `db:"free_tokens_expires_at" json:"free_tokens_expires_at,omitempty"`
	Version       int64      `db:"version" json:"version"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Account) freeExpired(now time.Time) bool {
	return a.FreeExpiresAt != nil && !now.Before(*a.FreeExpiresAt)
}

// EffectiveFree is the free pool as of now: zero once it has expired,
// whether or not that has been written back yet.
func (a *Account) EffectiveFree(now time.Time) int {
	if a.freeExpired(now) {
		return 0
	}
	return a.FreeTokens
}

// EffectiveBalance is the spendable balance as of now.
func (a *Account) EffectiveBalance(now time.Time) int {
	return a.EffectiveFree(now) + a.PaidTokens
}

// Normalize zeroes an expired free pool in place and reports whether it
// changed anything.
func (a *Account) Normalize(now time.Time) bool {
	if !a.freeExpired(now) {
		return false
	}
	a.FreeTokens = 0
	a.FreeExpiresAt = nil
	a.TokenBalance = a.PaidTokens
	return true
}

// Debit spends amount tokens, free pool first.
func (a *Account) Debit(now time.Time, amount int) error {
	if amount <= 0 {
		return ErrInvalidCost
	}
	a.Normalize(now)
	if a.FreeTokens+a.PaidTokens < amount {
		return ErrInsufficientBalance
	}

	fromFree := min(a.FreeTokens, amount)
	a.FreeTokens -= fromFree
	a.PaidTokens -= amount - fromFree
	a.TokenBalance = a.FreeTokens + a.PaidTokens
	return nil
}

// DebitPaidFirst removes amount tokens starting with the paid pool, so that
// an administrative credit followed by an equal debit restores both pools.
func (a *Account) DebitPaidFirst(now time.Time, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.Normalize(now)
	if a.FreeTokens+a.PaidTokens < amount {
		return ErrInsufficientBalance
	}

	fromPaid := min(a.PaidTokens, amount)
	a.PaidTokens -= fromPaid
	a.FreeTokens -= amount - fromPaid
	a.TokenBalance = a.FreeTokens + a.PaidTokens
	return nil
}

// CreditPaid adds non-expiring tokens.
func (a *Account) CreditPaid(amount int) {
	a.PaidTokens += amount
	a.TokenBalance = a.FreeTokens + a.PaidTokens
}

// Balance is the read model of an account evaluated at a point in time.
type Balance struct {
	SellerID     uuid.UUID  `json:"seller_id"`
	HasTokens    bool       `json:"has_tokens"`
	TokenBalance int        `json:"token_balance"`
	FreeTokens   int        `json:"free_tokens"`
	PaidTokens   int        `json:"paid_tokens"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// BalanceAt evaluates the account at now without mutating it.
func (a *Account) BalanceAt(now time.Time) Balance {
	free := a.EffectiveFree(now)
	b := Balance{
		SellerID:     a.SellerID,
		TokenBalance: free + a.PaidTokens,
		FreeTokens:   free,
		PaidTokens:   a.PaidTokens,
	}
	b.HasTokens = b.TokenBalance > 0
	if free > 0 && a.FreeExpiresAt != nil {
		exp := *a.FreeExpiresAt
		b.ExpiresAt = &exp
	}
	return b
}

// Transaction is one append-only ledger row.
type Transaction struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	SellerID         uuid.UUID  `db:"seller_id" json:"seller_id"`
	Type             TxType     `db:"type" json:"type"`
	TokensAmount     int        `db:"tokens_amount" json:"tokens_amount"`
	PricePaid        *float64   `db:"price_paid" json:"price_paid,omitempty"`
	PaymentMethod    *string    `db:"payment_method" json:"payment_method,omitempty"`
	PaymentReference *string    `db:"payment_reference" json:"payment_reference,omitempty"`
	Status           TxStatus   `db:"status" json:"status"`
	ProductID        *uuid.UUID `db:"product_id" json:"product_id,omitempty"`
	Reason           *string    `db:"reason" json:"reason,omitempty"`
	ActorID          *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// IsDebit reports whether the row removed tokens.
func (t *Transaction) IsDebit() bool {
	return t.TokensAmount < 0
}

// Pagination controls simple list pagination.
type Pagination struct {
	Page  int
	Limit int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps page and limit and returns the row offset.
func (p *Pagination) Normalize() int {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return (p.Page - 1) * p.Limit
}

// SearchFilters provides admin-facing transaction filtering.
type SearchFilters struct {
	SellerID *uuid.UUID
	Type     *TxType
	Status   *TxStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Pagination
}

// AdjustRequest is an authorized manual balance change.
type AdjustRequest struct {
	SellerID uuid.UUID
	Amount   int
	Reason   string
	ActorID  uuid.UUID
}

// AdjustResult reports the outcome of AdminAdjust. Err keeps the sentinel for
// callers that branch on it.
type AdjustResult struct {
	Success    bool   `json:"success"`
	NewBalance int    `json:"new_balance"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}
