package product_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketly/marketly-api/internal/domain/product"
	"github.com/marketly/marketly-api/internal/domain/token"
	"github.com/marketly/marketly-api/internal/domain/token/tokentest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memProducts struct {
	mu        sync.Mutex
	items     map[uuid.UUID]product.Product
	createErr error
}

func newMemProducts() *memProducts {
	return &memProducts{items: make(map[uuid.UUID]product.Product)}
}

func (m *memProducts) CreateTx(_ context.Context, _ *sqlx.Tx, p *product.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p.ID] = *p
	return nil
}

func (m *memProducts) GetByID(_ context.Context, id uuid.UUID) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return &p, nil
}

func (m *memProducts) ListBySeller(_ context.Context, sellerID uuid.UUID, limit, offset int) ([]product.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0)
	for _, p := range m.items {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	total := len(out)
	if offset >= total {
		return []product.Product{}, total, nil
	}
	return out[offset:min(offset+limit, total)], total, nil
}

func (m *memProducts) ListBoosted(_ context.Context, now time.Time, limit int) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0)
	for _, p := range m.items {
		if p.IsActive() && p.BoostActive(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoostedAt.After(*out[j].BoostedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProducts) UpdateStatus(_ context.Context, id, sellerID uuid.UUID, status product.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return product.ErrProductNotFound
	}
	if p.SellerID != sellerID {
		return product.ErrNotOwner
	}
	p.Status = status
	m.items[id] = p
	return nil
}

type fixture struct {
	products *memProducts
	ledger   *tokentest.Store
	clock    *tokentest.Clock
	tokens   *token.Service
	svc      *product.Service
}

func newFixture() *fixture {
	f := &fixture{
		products: newMemProducts(),
		ledger:   tokentest.NewStore(),
		clock:    tokentest.NewClock(t0),
	}
	f.tokens = token.NewService(f.ledger, nil, nil, token.Config{
		SignupBonus:   3,
		FreeTokensTTL: 30 * 24 * time.Hour,
		PublishCost:   1,
	}, token.WithClock(f.clock.Now))
	f.svc = product.NewService(f.products, f.tokens, f.clock.Now)
	return f
}

func TestPublishChargesAndCreates(t *testing.T) {
	f := newFixture()
	sellerID := uuid.New()

	p, err := f.svc.Publish(context.Background(), sellerID, &product.PublishRequest{Title: "  Desk lamp ", Price: 20})
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", p.Title)
	assert.Equal(t, product.StatusActive, p.Status)

	stored, err := f.products.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, sellerID, stored.SellerID)

	acc, _ := f.ledger.Account(sellerID)
	assert.Equal(t, 2, acc.TokenBalance)

	rows := f.ledger.Rows(sellerID)
	require.Len(t, rows, 2)
	assert.Equal(t, token.TxTypeUsage, rows[1].Type)
	require.NotNil(t, rows[1].ProductID)
	assert.Equal(t, p.ID, *rows[1].ProductID)
}

func TestPublishWithoutTokensCreatesNothing(t *testing.T) {
	f := newFixture()
	sellerID := uuid.New()
	f.ledger.Put(token.Account{SellerID: sellerID})

	_, err := f.svc.Publish(context.Background(), sellerID, &product.PublishRequest{Title: "Desk lamp"})
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
	assert.Empty(t, f.products.items)
	assert.Empty(t, f.ledger.Rows(sellerID))
}

func TestPublishInsertFailureKeepsTokens(t *testing.T) {
	f := newFixture()
	sellerID := uuid.New()
	f.ledger.Put(token.Account{SellerID: sellerID, PaidTokens: 2, TokenBalance: 2})
	f.products.createErr = errors.New("insert failed")

	_, err := f.svc.Publish(context.Background(), sellerID, &product.PublishRequest{Title: "Desk lamp"})
	require.Error(t, err)

	acc, _ := f.ledger.Account(sellerID)
	assert.Equal(t, 2, acc.TokenBalance)
	assert.Empty(t, f.ledger.Rows(sellerID))
}

func TestListBoostedUsesServerClock(t *testing.T) {
	f := newFixture()
	sellerID := uuid.New()
	boostedAt := t0
	until := t0.Add(24 * time.Hour)
	id := uuid.New()
	f.products.items[id] = product.Product{ID: id, SellerID: sellerID, Title: "Lamp", Status: product.StatusActive, IsBoosted: true, BoostedAt: &boostedAt, BoostedUntil: &until}

	items, err := f.svc.ListBoosted(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	f.clock.Advance(25 * time.Hour)
	items, err = f.svc.ListBoosted(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	err := f.svc.UpdateStatus(context.Background(), uuid.New(), uuid.New(), product.Status("archived"))
	assert.ErrorIs(t, err, product.ErrInvalidStatus)
}
