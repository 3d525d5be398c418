package product

import (
	"time"

	"github.com/google/uuid"
)

// Status of a product listing.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Product is a seller's listing. The boost columns are written only by the
// boost activator; whether a boost is live is derived from BoostedUntil.
type Product struct {
	ID           uuid.UUID  `db:"id"`
	SellerID     uuid.UUID  `db:"seller_id"`
	Title        string     `db:"title"`
	Description  string     `db:"description"`
	Price        float64    `db:"price"`
	Status       Status     `db:"status"`
	IsBoosted    bool       `db:"is_boosted"`
	BoostedAt    *time.Time `db:"boosted_at"`
	BoostedUntil *time.Time `db:"boosted_until"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// IsActive returns true if the listing is visible
func (p *Product) IsActive() bool {
	return p.Status == StatusActive
}

// BoostActive reports whether the boost window is open at now.
func (p *Product) BoostActive(now time.Time) bool {
	return p.IsBoosted && p.BoostedUntil != nil && now.Before(*p.BoostedUntil)
}

// BoostRemaining is the time left in the boost window at now, zero when none.
func (p *Product) BoostRemaining(now time.Time) time.Duration {
	if !p.BoostActive(now) {
		return 0
	}
	return p.BoostedUntil.Sub(now)
}
