package boost

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketly/marketly-api/internal/domain/product"
)

// State is a product's boost as evaluated with the server clock. Clients
// render it and never decide activity themselves.
type State struct {
	ProductID        uuid.UUID  `json:"product_id"`
	IsBoosted        bool       `json:"is_boosted"`
	Active           bool       `json:"active"`
	BoostedAt        *time.Time `json:"boosted_at,omitempty"`
	BoostedUntil     *time.Time `json:"boosted_until,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	EvaluatedAt      time.Time  `json:"evaluated_at"`
}

// StateOf derives the boost state of p at now.
func StateOf(p *product.Product, now time.Time) State {
	return State{
		ProductID:        p.ID,
		IsBoosted:        p.IsBoosted,
		Active:           p.BoostActive(now),
		BoostedAt:        p.BoostedAt,
		BoostedUntil:     p.BoostedUntil,
		RemainingSeconds: int64(p.BoostRemaining(now) / time.Second),
		EvaluatedAt:      now,
	}
}

// ExpiredEvent is published once for every boost window that has closed.
type ExpiredEvent struct {
	ProductID    uuid.UUID `json:"product_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	BoostedAt    time.Time `json:"boosted_at"`
	BoostedUntil time.Time `json:"boosted_until"`
}

// lastProductID sorts after every other id, so a cursor built from a bare
// timestamp skips rows that closed exactly at that instant.
var lastProductID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

// ExpiryCursor is a position in the (boosted_until, id) ordering of closed
// boost windows. Listing resumes strictly after it.
type ExpiryCursor struct {
	Until     time.Time
	ProductID uuid.UUID
}

// CursorAt positions before every window that closed after t.
func CursorAt(t time.Time) ExpiryCursor {
	return ExpiryCursor{Until: t, ProductID: lastProductID}
}
