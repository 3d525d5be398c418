package token

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func accountWith(free, paid int, expires *time.Time) *Account {
	return &Account{
		SellerID:      uuid.New(),
		FreeTokens:    free,
		PaidTokens:    paid,
		TokenBalance:  free + paid,
		FreeExpiresAt: expires,
		Version:       1,
	}
}

func TestAccountDebit(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := t0.Add(24 * time.Hour)
	past := t0.Add(-time.Minute)

	tests := []struct {
		name      string
		acc       *Account
		amount    int
		wantFree  int
		wantPaid  int
		wantError error
	}{
		{name: "free pool first", acc: accountWith(3, 2, &future), amount: 1, wantFree: 2, wantPaid: 2},
		{name: "spills into paid", acc: accountWith(1, 2, &future), amount: 2, wantFree: 0, wantPaid: 1},
		{name: "exact balance", acc: accountWith(1, 1, &future), amount: 2, wantFree: 0, wantPaid: 0},
		{name: "expired free ignored", acc: accountWith(3, 1, &past), amount: 2, wantFree: 0, wantPaid: 1, wantError: ErrInsufficientBalance},
		{name: "zero cost", acc: accountWith(3, 0, &future), amount: 0, wantFree: 3, wantPaid: 0, wantError: ErrInvalidCost},
		{name: "overdraft", acc: accountWith(0, 1, nil), amount: 2, wantFree: 0, wantPaid: 1, wantError: ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.acc.Debit(t0, tt.amount)
			if !errors.Is(err, tt.wantError) {
				t.Fatalf("expected error %v, got %v", tt.wantError, err)
			}
			if tt.acc.FreeTokens != tt.wantFree || tt.acc.PaidTokens != tt.wantPaid {
				t.Fatalf("expected %d/%d, got %d/%d", tt.wantFree, tt.wantPaid, tt.acc.FreeTokens, tt.acc.PaidTokens)
			}
			if tt.acc.TokenBalance != tt.acc.FreeTokens+tt.acc.PaidTokens {
				t.Fatalf("balance %d does not equal pools %d+%d", tt.acc.TokenBalance, tt.acc.FreeTokens, tt.acc.PaidTokens)
			}
		})
	}
}

func TestAccountDebitPaidFirst(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	acc := accountWith(3, 2, &exp)

	if err := acc.DebitPaidFirst(now, 4); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if acc.PaidTokens != 0 || acc.FreeTokens != 1 || acc.TokenBalance != 1 {
		t.Fatalf("unexpected pools %+v", acc)
	}
}

func TestAccountNormalize(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	exp := t0.Add(time.Hour)
	acc := accountWith(3, 2, &exp)

	if acc.Normalize(t0) {
		t.Fatal("normalize before expiry must not change the account")
	}
	if !acc.Normalize(exp) {
		t.Fatal("free pool expires at exactly its expiry instant")
	}
	if acc.FreeTokens != 0 || acc.FreeExpiresAt != nil || acc.TokenBalance != 2 {
		t.Fatalf("unexpected account after normalize: %+v", acc)
	}
	if acc.Normalize(exp.Add(time.Hour)) {
		t.Fatal("second normalize must be a no-op")
	}
}

func TestBalanceAt(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	exp := t0.Add(30 * 24 * time.Hour)
	acc := accountWith(3, 0, &exp)

	b := acc.BalanceAt(t0)
	if !b.HasTokens || b.TokenBalance != 3 || b.ExpiresAt == nil || !b.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected balance before expiry: %+v", b)
	}

	b = acc.BalanceAt(exp.Add(time.Second))
	if b.HasTokens || b.TokenBalance != 0 || b.FreeTokens != 0 || b.ExpiresAt != nil {
		t.Fatalf("unexpected balance after expiry: %+v", b)
	}
	if acc.FreeTokens != 3 {
		t.Fatal("BalanceAt must not mutate the account")
	}
}

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		in         Pagination
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{in: Pagination{}, wantPage: 1, wantLimit: 20, wantOffset: 0},
		{in: Pagination{Page: 3, Limit: 10}, wantPage: 3, wantLimit: 10, wantOffset: 20},
		{in: Pagination{Page: -1, Limit: 500}, wantPage: 1, wantLimit: 100, wantOffset: 0},
	}

	for _, tt := range tests {
		p := tt.in
		offset := p.Normalize()
		if p.Page != tt.wantPage || p.Limit != tt.wantLimit || offset != tt.wantOffset {
			t.Fatalf("Normalize(%+v) = page %d limit %d offset %d", tt.in, p.Page, p.Limit, offset)
		}
	}
}
