// Package tokentest provides an in-memory token.Store for tests of the
// ledger and of the domains that spend tokens.
package tokentest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/marketly/marketly-api/internal/domain/token"
)

// Store keeps accounts and ledger rows in memory. WithAccountLock holds a
// per-seller mutex for the whole callback and applies staged writes only
// when the callback succeeds, like a row lock inside a transaction.
type Store struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]token.Account
	rows     []token.Transaction
	locks    map[uuid.UUID]*sync.Mutex

	// LockErr, when set, is returned by WithAccountLock before fn runs.
	LockErr error
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]token.Account),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Put stores acc as is, replacing any existing account.
func (s *Store) Put(acc token.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.Version == 0 {
		acc.Version = 1
	}
	s.accounts[acc.SellerID] = acc
}

// Account returns a copy of the stored account.
func (s *Store) Account(sellerID uuid.UUID) (token.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[sellerID]
	return acc, ok
}

// Rows returns the seller's ledger in insertion order.
func (s *Store) Rows(sellerID uuid.UUID) []token.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]token.Transaction, 0)
	for _, r := range s.rows {
		if r.SellerID == sellerID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) lockFor(sellerID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sellerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sellerID] = l
	}
	return l
}

func (s *Store) CreateAccount(_ context.Context, acc *token.Account, bonus *token.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.SellerID]; ok {
		return false, nil
	}
	stored := *acc
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.accounts[acc.SellerID] = stored
	if bonus != nil {
		s.rows = append(s.rows, *bonus)
	}
	return true, nil
}

func (s *Store) GetAccount(_ context.Context, sellerID uuid.UUID) (*token.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[sellerID]
	if !ok {
		return nil, token.ErrAccountNotFound
	}
	return &acc, nil
}

func (s *Store) WithAccountLock(ctx context.Context, sellerID uuid.UUID, fn func(ctx context.Context, tx token.AccountTx) error) error {
	if s.LockErr != nil {
		return s.LockErr
	}

	l := s.lockFor(sellerID)
	l.Lock()
	defer l.Unlock()

	acc, err := s.GetAccount(ctx, sellerID)
	if err != nil {
		return err
	}

	tx := &accountTx{store: s, account: acc, statuses: make(map[uuid.UUID]token.TxStatus)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) GetPurchase(_ context.Context, reference string) (*token.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Type == token.TxTypePurchase && r.PaymentReference != nil && *r.PaymentReference == reference {
			row := r
			return &row, nil
		}
	}
	return nil, token.ErrPurchaseNotFound
}

func (s *Store) ListTransactions(_ context.Context, sellerID uuid.UUID, p token.Pagination) ([]token.Transaction, int, error) {
	id := sellerID
	return s.search(token.SearchFilters{SellerID: &id, Pagination: p})
}

func (s *Store) SearchTransactions(_ context.Context, f token.SearchFilters) ([]token.Transaction, int, error) {
	return s.search(f)
}

func (s *Store) search(f token.SearchFilters) ([]token.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]token.Transaction, 0)
	for i := len(s.rows) - 1; i >= 0; i-- {
		r := s.rows[i]
		switch {
		case f.SellerID != nil && r.SellerID != *f.SellerID:
			continue
		case f.Type != nil && *f.Type != "" && r.Type != *f.Type:
			continue
		case f.Status != nil && *f.Status != "" && r.Status != *f.Status:
			continue
		case f.DateFrom != nil && r.CreatedAt.Before(*f.DateFrom):
			continue
		case f.DateTo != nil && r.CreatedAt.After(*f.DateTo):
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	offset := f.Pagination.Normalize()
	if offset >= len(matched) {
		return []token.Transaction{}, len(matched), nil
	}
	end := min(offset+f.Limit, len(matched))
	return matched[offset:end], len(matched), nil
}

func (s *Store) ListExpiredFreePools(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0)
	for id, acc := range s.accounts {
		if acc.FreeTokens > 0 && acc.FreeExpiresAt != nil && !acc.FreeExpiresAt.After(now) {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

type accountTx struct {
	store    *Store
	account  *token.Account
	saved    *token.Account
	rows     []token.Transaction
	statuses map[uuid.UUID]token.TxStatus
}

func (t *accountTx) Account() *token.Account { return t.account }

func (t *accountTx) SQL() *sqlx.Tx { return nil }

func (t *accountTx) SaveAccount(_ context.Context, acc *token.Account) error {
	t.store.mu.Lock()
	current := t.store.accounts[acc.SellerID]
	t.store.mu.Unlock()

	if current.Version != acc.Version {
		return token.ErrConcurrentModification
	}
	acc.Version++
	saved := *acc
	t.saved = &saved
	return nil
}

func (t *accountTx) AppendTransaction(_ context.Context, row *token.Transaction) error {
	if row.PaymentReference != nil {
		if _, err := t.store.GetPurchase(context.Background(), *row.PaymentReference); err == nil {
			return token.ErrDuplicateReference
		}
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	t.rows = append(t.rows, *row)
	return nil
}

func (t *accountTx) LockPurchase(ctx context.Context, reference string) (*token.Transaction, error) {
	row, err := t.store.GetPurchase(ctx, reference)
	if err != nil {
		return nil, err
	}
	if row.SellerID != t.account.SellerID {
		return nil, token.ErrPurchaseNotFound
	}
	return row, nil
}

func (t *accountTx) SetTransactionStatus(_ context.Context, id uuid.UUID, status token.TxStatus) error {
	t.statuses[id] = status
	return nil
}

func (t *accountTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.saved != nil {
		s.accounts[t.saved.SellerID] = *t.saved
	}
	for i := range s.rows {
		if st, ok := t.statuses[s.rows[i].ID]; ok {
			if s.rows[i].Status != token.TxStatusPending {
				return token.ErrPurchaseNotPending
			}
			s.rows[i].Status = st
		}
	}
	s.rows = append(s.rows, t.rows...)
	return nil
}

// Bus records published events.
type Bus struct {
	mu     sync.Mutex
	events map[string][][]byte
}

func NewBus() *Bus {
	return &Bus{events: make(map[string][][]byte)}
}

func (b *Bus) Publish(topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[topic] = append(b.events[topic], data)
	return nil
}

// Events returns the payloads published to topic.
func (b *Bus) Events(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.events[topic]...)
}

// Clock is a settable clock for token.WithClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
