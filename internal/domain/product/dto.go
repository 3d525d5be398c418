package product

import (
	"time"

	"github.com/google/uuid"
)

// PublishRequest is the body of POST /products.
type PublishRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// UpdateStatusRequest is the body of PATCH /products/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// Response is the public view of a product. BoostActive and BoostedUntil are
// evaluated with the server clock.
type Response struct {
	ID           uuid.UUID  `json:"id"`
	SellerID     uuid.UUID  `json:"seller_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Price        float64    `json:"price"`
	Status       Status     `json:"status"`
	BoostActive  bool       `json:"boost_active"`
	BoostedUntil *time.Time `json:"boosted_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToResponse converts a product as seen at now.
func (p *Product) ToResponse(now time.Time) *Response {
	resp := &Response{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Status:      p.Status,
		BoostActive: p.BoostActive(now),
		CreatedAt:   p.CreatedAt,
	}
	if resp.BoostActive {
		until := *p.BoostedUntil
		resp.BoostedUntil = &until
	}
	return resp
}

func toResponses(items []Product, now time.Time) []*Response {
	out := make([]*Response, 0, len(items))
	for i := range items {
		out = append(out, items[i].ToResponse(now))
	}
	return out
}
