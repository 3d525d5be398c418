package boost

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marketly/marketly-api/internal/domain/product"
	"github.com/marketly/marketly-api/internal/domain/token"
	"github.com/marketly/marketly-api/internal/pkg/eventbus"
	"github.com/marketly/marketly-api/internal/pkg/telemetry"
	"github.com/marketly/marketly-api/internal/pkg/validator"
)

const (
	tracerName = "boost"

	expiredBatchSize = 500
)

// Store is the persistence the activator needs.
type Store interface {
	ActivateTx(ctx context.Context, tx *sqlx.Tx, productID, sellerID uuid.UUID, now, until time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
	ListExpiredBetween(ctx context.Context, after ExpiryCursor, to time.Time, limit int) ([]product.Product, error)
}

// Spender debits tokens and runs the paid-for action in one transaction.
type Spender interface {
	Spend(ctx context.Context, req token.SpendRequest) (*token.Transaction, error)
}

// Service activates paid product boosts.
type Service struct {
	store  Store
	tokens Spender
	bus    eventbus.Publisher
	cost   int
	now    func() time.Time

	batchSize int
}

// NewService creates the boost activator. now is the server clock; nil means time.Now.
func NewService(store Store, tokens Spender, bus eventbus.Publisher, cost int, now func() time.Time) *Service {
	if cost < 1 {
		cost = 2
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, tokens: tokens, bus: bus, cost: cost, now: now, batchSize: expiredBatchSize}
}

// Boost charges the boost cost and opens a durationHours window on the
// product. The debit and the window are one transaction: if the product is
// not eligible nothing is charged.
func (s *Service) Boost(ctx context.Context, sellerID, productID uuid.UUID, durationHours int) (*State, error) {
	if !validator.IsBoostDuration(durationHours) {
		return nil, ErrInvalidDuration
	}

	ctx, span := telemetry.Start(ctx, tracerName, "boost.Boost",
		attribute.String("seller_id", sellerID.String()),
		attribute.String("product_id", productID.String()),
		attribute.Int("duration_hours", durationHours),
	)

	var now, until time.Time
	ref := productID
	_, err := s.tokens.Spend(ctx, token.SpendRequest{
		SellerID:  sellerID,
		Cost:      s.cost,
		Type:      token.TxTypeBoost,
		ProductID: &ref,
		Exec: func(ctx context.Context, tx *sqlx.Tx) error {
			now = s.now()
			until = now.Add(time.Duration(durationHours) * time.Hour)
			return s.store.ActivateTx(ctx, tx, productID, sellerID, now, until)
		},
	})
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("seller_id", sellerID.String()).
		Str("product_id", productID.String()).
		Time("boosted_until", until).
		Msg("product boosted")

	return &State{
		ProductID:        productID,
		IsBoosted:        true,
		Active:           true,
		BoostedAt:        &now,
		BoostedUntil:     &until,
		RemainingSeconds: int64(until.Sub(now) / time.Second),
		EvaluatedAt:      now,
	}, nil
}

// GetState returns the product's boost state as of now.
func (s *Service) GetState(ctx context.Context, productID uuid.UUID) (*State, error) {
	p, err := s.store.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	st := StateOf(p, s.now())
	return &st, nil
}

// PublishExpired emits boost.expired for every window that closed in
// (from, to], paging through the closed windows in batches. Expiry itself
// needs no write; this only notifies. On error the events already sent stay
// sent and the caller retries the whole range, so delivery is at least once.
func (s *Service) PublishExpired(ctx context.Context, from, to time.Time) (int, error) {
	cursor := CursorAt(from)
	published := 0

	for {
		items, err := s.store.ListExpiredBetween(ctx, cursor, to, s.batchSize)
		if err != nil {
			return published, err
		}

		for i := range items {
			p := &items[i]
			if p.BoostedAt == nil || p.BoostedUntil == nil {
				continue
			}
			eventbus.PublishJSON(ctx, s.bus, eventbus.TopicBoostExpired, ExpiredEvent{
				ProductID:    p.ID,
				SellerID:     p.SellerID,
				BoostedAt:    *p.BoostedAt,
				BoostedUntil: *p.BoostedUntil,
			})
			published++
		}

		if len(items) < s.batchSize {
			return published, nil
		}
		last := items[len(items)-1]
		if last.BoostedUntil == nil {
			return published, nil
		}
		cursor = ExpiryCursor{Until: *last.BoostedUntil, ProductID: last.ID}
	}
}

// Now is the clock boost state is evaluated with.
func (s *Service) Now() time.Time {
	return s.now()
}
