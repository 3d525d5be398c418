package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/marketly/marketly-api/internal/domain/token"
)

const maxBoostedListing = 50

// Store persists products.
type Store interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]Product, int, error)
	ListBoosted(ctx context.Context, now time.Time, limit int) ([]Product, error)
	UpdateStatus(ctx context.Context, id, sellerID uuid.UUID, status Status) error
}

// TokenSpender charges for a publish and runs exec in the same transaction.
type TokenSpender interface {
	ConsumeForPublish(ctx context.Context, sellerID uuid.UUID, cost int, productID uuid.UUID, exec token.ExecFunc) error
}

// Service handles product business logic
type Service struct {
	store  Store
	tokens TokenSpender
	now    func() time.Time
}

// NewService creates product service. now is the server clock; nil means time.Now.
func NewService(store Store, tokens TokenSpender, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, tokens: tokens, now: now}
}

// Publish creates an active listing and pays for it with one publish charge.
// The product row and the debit commit together or not at all.
func (s *Service) Publish(ctx context.Context, sellerID uuid.UUID, req *PublishRequest) (*Product, error) {
	now := s.now()
	p := &Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tokens.ConsumeForPublish(ctx, sellerID, 0, p.ID, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.store.CreateTx(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("product_id", p.ID.String()).
		Str("seller_id", sellerID.String()).
		Msg("product published")

	return p, nil
}

// GetByID returns a product
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.store.GetByID(ctx, id)
}

// ListMine returns the seller's products
func (s *Service) ListMine(ctx context.Context, sellerID uuid.UUID, p token.Pagination) ([]Product, int, error) {
	offset := p.Normalize()
	return s.store.ListBySeller(ctx, sellerID, p.Limit, offset)
}

// ListBoosted returns the boosted ranking as of now.
func (s *Service) ListBoosted(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 || limit > maxBoostedListing {
		limit = maxBoostedListing
	}
	return s.store.ListBoosted(ctx, s.now(), limit)
}

// UpdateStatus activates or deactivates a listing owned by sellerID.
func (s *Service) UpdateStatus(ctx context.Context, id, sellerID uuid.UUID, status Status) error {
	if status != StatusActive && status != StatusInactive {
		return ErrInvalidStatus
	}
	return s.store.UpdateStatus(ctx, id, sellerID, status)
}

// Now is the clock product reads are evaluated with.
func (s *Service) Now() time.Time {
	return s.now()
}
