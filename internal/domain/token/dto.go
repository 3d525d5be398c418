package token

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CreatePurchaseRequest is the body of POST /tokens/purchases.
type CreatePurchaseRequest struct {
	Tokens        int     `json:"tokens" validate:"required,min=1,max=10000"`
	PricePaid     float64 `json:"price_paid" validate:"gte=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,max=50"`
}

// AdjustTokensRequest is the body of the admin adjust endpoint.
type AdjustTokensRequest struct {
	Amount int    `json:"amount" validate:"nonzero,gte=-1000000,lte=1000000"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// PaymentCallbackRequest is what the gateway posts to the webhook.
type PaymentCallbackRequest struct {
	Reference string `json:"reference" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=confirmed failed"`
}

// SearchQuery is the admin ledger search, read from the query string.
type SearchQuery struct {
	SellerID string `json:"seller_id" validate:"omitempty,uuid"`
	Type     string `json:"type" validate:"token_tx_type"`
	Status   string `json:"status" validate:"token_tx_status"`
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func parseSearchQuery(r *http.Request) SearchQuery {
	q := r.URL.Query()
	return SearchQuery{
		SellerID: q.Get("seller_id"),
		Type:     q.Get("type"),
		Status:   q.Get("status"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	}
}

// Filters converts a validated query into store filters.
func (q SearchQuery) Filters(p Pagination) SearchFilters {
	f := SearchFilters{Pagination: p}
	if id, err := uuid.Parse(q.SellerID); err == nil {
		f.SellerID = &id
	}
	if q.Type != "" {
		t := TxType(q.Type)
		f.Type = &t
	}
	if q.Status != "" {
		st := TxStatus(q.Status)
		f.Status = &st
	}
	if from, err := time.Parse(time.RFC3339, q.From); err == nil {
		f.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, q.To); err == nil {
		f.DateTo = &to
	}
	return f
}

func parsePagination(r *http.Request) Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	p := Pagination{Page: page, Limit: limit}
	p.Normalize()
	return p
}

// PurchaseResponse is returned when a purchase is opened.
type PurchaseResponse struct {
	ID               uuid.UUID `json:"id"`
	PaymentReference string    `json:"payment_reference"`
	Tokens           int       `json:"tokens"`
	Status           TxStatus  `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func purchaseResponse(t *Transaction) PurchaseResponse {
	resp := PurchaseResponse{
		ID:        t.ID,
		Tokens:    t.TokensAmount,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
	if t.PaymentReference != nil {
		resp.PaymentReference = *t.PaymentReference
	}
	return resp
}
