package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marketly/marketly-api/internal/pkg/eventbus"
	"github.com/marketly/marketly-api/internal/pkg/telemetry"
)

const (
	tracerName = "token"

	reconcileBatchSize = 500
)

// Config is the token policy.
type Config struct {
	SignupBonus         int
	FreeTokensTTL       time.Duration
	PublishCost         int
	LowBalanceThreshold int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the server clock used for every expiry decision.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the seller token ledger.
type Service struct {
	store Store
	cache BalanceCache
	bus   eventbus.Publisher
	cfg   Config
	now   func() time.Time
}

// NewService wires the ledger. cache and bus may be nil.
func NewService(store Store, cache BalanceCache, bus eventbus.Publisher, cfg Config, opts ...Option) *Service {
	if cfg.PublishCost < 1 {
		cfg.PublishCost = 1
	}
	s := &Service{
		store: store,
		cache: cache,
		bus:   bus,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the server clock the ledger decides with.
func (s *Service) Now() time.Time {
	return s.now()
}

// EnsureAccount creates the seller's account with the signup bonus if it does
// not exist yet. It reports whether this call created it.
func (s *Service) EnsureAccount(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	ctx, span := telemetry.Start(ctx, tracerName, "token.EnsureAccount", attribute.String("seller_id", sellerID.String()))
	created, err := s.ensureAccount(ctx, sellerID)
	telemetry.End(span, err)
	return created, err
}

func (s *Service) ensureAccount(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	now := s.now()
	acc := &Account{SellerID: sellerID, Version: 1}

	var bonus *Transaction
	if s.cfg.SignupBonus > 0 {
		exp := now.Add(s.cfg.FreeTokensTTL)
		acc.FreeTokens = s.cfg.SignupBonus
		acc.TokenBalance = s.cfg.SignupBonus
		acc.FreeExpiresAt = &exp
		bonus = &Transaction{
			ID:           uuid.New(),
			SellerID:     sellerID,
			Type:         TxTypeTrialBonus,
			TokensAmount: s.cfg.SignupBonus,
			Status:       TxStatusCompleted,
			CreatedAt:    now,
		}
	}

	created, err := s.store.CreateAccount(ctx, acc, bonus)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	log.Info().
		Str("seller_id", sellerID.String()).
		Int("signup_bonus", s.cfg.SignupBonus).
		Msg("token account created")

	if bonus != nil {
		s.publishTransaction(ctx, bonus, acc, now)
	}
	return true, nil
}

// GetBalance returns the seller's balance as of now, creating the account on
// first access. Expired free tokens never count, even before a sweep.
func (s *Service) GetBalance(ctx context.Context, sellerID uuid.UUID) (*Balance, error) {
	now := s.now()

	if acc := s.cachedAccount(ctx, sellerID); acc != nil {
		b := acc.BalanceAt(now)
		return &b, nil
	}

	acc, err := s.store.GetAccount(ctx, sellerID)
	if errors.Is(err, ErrAccountNotFound) {
		if _, err := s.ensureAccount(ctx, sellerID); err != nil {
			return nil, err
		}
		acc, err = s.store.GetAccount(ctx, sellerID)
	}
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, acc)
	b := acc.BalanceAt(now)
	return &b, nil
}

// LookupBalance is GetBalance without lazy creation, for administrative reads.
func (s *Service) LookupBalance(ctx context.Context, sellerID uuid.UUID) (*Balance, error) {
	acc, err := s.store.GetAccount(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	b := acc.BalanceAt(s.now())
	return &b, nil
}

// SpendRequest debits Cost tokens and runs Exec in the same transaction.
type SpendRequest struct {
	SellerID  uuid.UUID
	Cost      int
	Type      TxType
	ProductID *uuid.UUID
	Exec      ExecFunc
}

// Spend is debit-and-execute: under the account lock it discounts an expired
// free pool, rejects when the effective balance is below Cost, runs Exec,
// debits free tokens before paid ones and appends one ledger row. If any step
// fails nothing is persisted.
func (s *Service) Spend(ctx context.Context, req SpendRequest) (*Transaction, error) {
	if req.Cost < 1 {
		return nil, ErrInvalidCost
	}
	if req.Type != TxTypeUsage && req.Type != TxTypeBoost {
		return nil, ErrInvalidTxType
	}

	ctx, span := telemetry.Start(ctx, tracerName, "token.Spend",
		attribute.String("seller_id", req.SellerID.String()),
		attribute.String("type", string(req.Type)),
		attribute.Int("cost", req.Cost),
	)

	var (
		row   *Transaction
		after Account
		now   time.Time
	)
	err := s.withAccount(ctx, req.SellerID, func(ctx context.Context, tx AccountTx) error {
		now = s.now()
		acc := tx.Account()
		acc.Normalize(now)

		if acc.EffectiveBalance(now) < req.Cost {
			return ErrInsufficientBalance
		}

		if req.Exec != nil {
			if err := req.Exec(ctx, tx.SQL()); err != nil {
				return err
			}
		}

		if err := acc.Debit(now, req.Cost); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}

		row = &Transaction{
			ID:           uuid.New(),
			SellerID:     req.SellerID,
			Type:         req.Type,
			TokensAmount: -req.Cost,
			Status:       TxStatusCompleted,
			ProductID:    req.ProductID,
			CreatedAt:    now,
		}
		if err := tx.AppendTransaction(ctx, row); err != nil {
			return err
		}

		after = *acc
		return nil
	})
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("seller_id", req.SellerID.String()).
		Str("type", string(req.Type)).
		Int("cost", req.Cost).
		Int("balance", after.TokenBalance).
		Msg("tokens spent")

	s.afterCommit(ctx, row, &after, now)
	return row, nil
}

// ConsumeForPublish charges cost tokens (the configured publish cost when
// cost is 0) for publishing productID, running exec in the same transaction.
// A nil error means the publish was paid for and exec committed.
func (s *Service) ConsumeForPublish(ctx context.Context, sellerID uuid.UUID, cost int, productID uuid.UUID, exec ExecFunc) error {
	if cost == 0 {
		cost = s.cfg.PublishCost
	}

	var ref *uuid.UUID
	if productID != uuid.Nil {
		ref = &productID
	}

	_, err := s.Spend(ctx, SpendRequest{
		SellerID:  sellerID,
		Cost:      cost,
		Type:      TxTypeUsage,
		ProductID: ref,
		Exec:      exec,
	})
	return err
}

// AdminAdjust applies an authorized manual credit (to the paid pool) or debit
// (paid pool first) and records the actor and reason on the ledger row. An
// unknown seller is rejected with ErrAccountNotFound; accounts are only
// opened by the seller's own activity.
func (s *Service) AdminAdjust(ctx context.Context, req AdjustRequest) AdjustResult {
	reason := strings.TrimSpace(req.Reason)

	var err error
	switch {
	case req.Amount == 0:
		err = ErrInvalidAmount
	case reason == "":
		err = ErrReasonRequired
	case req.ActorID == uuid.Nil:
		err = ErrActorRequired
	}
	if err != nil {
		return AdjustResult{Error: err.Error(), Err: err}
	}

	ctx, span := telemetry.Start(ctx, tracerName, "token.AdminAdjust",
		attribute.String("seller_id", req.SellerID.String()),
		attribute.String("actor_id", req.ActorID.String()),
		attribute.Int("amount", req.Amount),
	)

	var (
		row   *Transaction
		after Account
		now   time.Time
	)
	err = s.store.WithAccountLock(ctx, req.SellerID, func(ctx context.Context, tx AccountTx) error {
		now = s.now()
		acc := tx.Account()
		acc.Normalize(now)

		txType := TxTypeAdminCredit
		if req.Amount > 0 {
			acc.CreditPaid(req.Amount)
		} else {
			txType = TxTypeAdminDebit
			if err := acc.DebitPaidFirst(now, -req.Amount); err != nil {
				return err
			}
		}

		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}

		audit := fmt.Sprintf("admin %s: %s", req.ActorID, reason)
		actor := req.ActorID
		row = &Transaction{
			ID:           uuid.New(),
			SellerID:     req.SellerID,
			Type:         txType,
			TokensAmount: req.Amount,
			Status:       TxStatusCompleted,
			Reason:       &audit,
			ActorID:      &actor,
			CreatedAt:    now,
		}
		if err := tx.AppendTransaction(ctx, row); err != nil {
			return err
		}

		after = *acc
		return nil
	})
	telemetry.End(span, err)
	if err != nil {
		return AdjustResult{Error: err.Error(), Err: err}
	}

	log.Info().
		Str("seller_id", req.SellerID.String()).
		Str("actor_id", req.ActorID.String()).
		Int("amount", req.Amount).
		Int("balance", after.TokenBalance).
		Msg("admin token adjustment applied")

	s.afterCommit(ctx, row, &after, now)
	return AdjustResult{Success: true, NewBalance: after.EffectiveBalance(now)}
}

// ListTransactions returns the seller's ledger, newest first, and the total row count.
func (s *Service) ListTransactions(ctx context.Context, sellerID uuid.UUID, p Pagination) ([]Transaction, int, error) {
	return s.store.ListTransactions(ctx, sellerID, p)
}

// SearchTransactions filters the whole ledger for administrators.
func (s *Service) SearchTransactions(ctx context.Context, f SearchFilters) ([]Transaction, int, error) {
	if f.Type != nil && *f.Type != "" && !f.Type.Valid() {
		return nil, 0, ErrInvalidTxType
	}
	return s.store.SearchTransactions(ctx, f)
}

// ReconcileExpiredFreeTokens physically zeroes expired free pools. Balance
// reads and mutations already discount them; this only keeps stored rows
// tidy. Each account is rewritten under its own lock.
func (s *Service) ReconcileExpiredFreeTokens(ctx context.Context) (int, error) {
	ctx, span := telemetry.Start(ctx, tracerName, "token.ReconcileExpiredFreeTokens")

	ids, err := s.store.ListExpiredFreePools(ctx, s.now(), reconcileBatchSize)
	if err != nil {
		telemetry.End(span, err)
		return 0, err
	}

	reconciled := 0
	for _, sellerID := range ids {
		changed := false
		err := s.store.WithAccountLock(ctx, sellerID, func(ctx context.Context, tx AccountTx) error {
			acc := tx.Account()
			if !acc.Normalize(s.now()) {
				return nil
			}
			changed = true
			return tx.SaveAccount(ctx, acc)
		})
		if err != nil {
			log.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("Failed to reconcile expired free tokens")
			continue
		}
		if changed {
			reconciled++
			s.invalidate(ctx, sellerID)
		}
	}

	span.SetAttributes(attribute.Int("reconciled", reconciled))
	telemetry.End(span, nil)
	return reconciled, nil
}

// withAccount runs fn under the account lock, creating the account first if
// the seller has none yet.
func (s *Service) withAccount(ctx context.Context, sellerID uuid.UUID, fn func(ctx context.Context, tx AccountTx) error) error {
	err := s.store.WithAccountLock(ctx, sellerID, fn)
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	if _, err := s.ensureAccount(ctx, sellerID); err != nil {
		return err
	}
	return s.store.WithAccountLock(ctx, sellerID, fn)
}

func (s *Service) afterCommit(ctx context.Context, row *Transaction, acc *Account, now time.Time) {
	s.invalidate(ctx, acc.SellerID)
	s.publishTransaction(ctx, row, acc, now)

	if row.IsDebit() && s.cfg.LowBalanceThreshold > 0 {
		if balance := acc.EffectiveBalance(now); balance < s.cfg.LowBalanceThreshold {
			eventbus.PublishJSON(ctx, s.bus, eventbus.TopicLowBalance, LowBalanceEvent{
				SellerID:   acc.SellerID,
				Balance:    balance,
				Threshold:  s.cfg.LowBalanceThreshold,
				OccurredAt: now,
			})
		}
	}
}

func (s *Service) publishTransaction(ctx context.Context, row *Transaction, acc *Account, now time.Time) {
	eventbus.PublishJSON(ctx, s.bus, eventbus.TopicTransactionCreated, TransactionEvent{
		TransactionID: row.ID,
		SellerID:      row.SellerID,
		Type:          row.Type,
		Status:        row.Status,
		TokensAmount:  row.TokensAmount,
		ProductID:     row.ProductID,
		Balance:       acc.EffectiveBalance(now),
		OccurredAt:    now,
	})
}

func (s *Service) cachedAccount(ctx context.Context, sellerID uuid.UUID) *Account {
	if s.cache == nil {
		return nil
	}
	acc, err := s.cache.Get(ctx, sellerID)
	if err != nil {
		log.Debug().Err(err).Str("seller_id", sellerID.String()).Msg("balance cache read failed")
		return nil
	}
	return acc
}

func (s *Service) cacheAccount(ctx context.Context, acc *Account) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, acc); err != nil {
		log.Debug().Err(err).Str("seller_id", acc.SellerID.String()).Msg("balance cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, sellerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sellerID); err != nil {
		log.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("balance cache invalidation failed")
	}
}
