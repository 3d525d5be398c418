package token

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketly/marketly-api/internal/middleware"
	"github.com/marketly/marketly-api/internal/pkg/errorhandler"
	"github.com/marketly/marketly-api/internal/pkg/response"
	"github.com/marketly/marketly-api/internal/pkg/validator"
)

// Handler serves the seller-facing token endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// EnsureAccount handles POST /tokens/account
func (h *Handler) EnsureAccount(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	created, err := h.svc.EnsureAccount(r.Context(), sellerID)
	if err != nil {
		RespondError(r.Context(), w, "ensure account", err)
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), sellerID)
	if err != nil {
		RespondError(r.Context(), w, "get balance", err)
		return
	}

	if created {
		response.Created(w, balance)
		return
	}
	response.OK(w, balance)
}

// Balance handles GET /tokens/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), sellerID)
	if err != nil {
		RespondError(r.Context(), w, "get balance", err)
		return
	}

	response.OK(w, balance)
}

// ListTransactions handles GET /tokens/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	p := parsePagination(r)
	items, total, err := h.svc.ListTransactions(r.Context(), sellerID, p)
	if err != nil {
		RespondError(r.Context(), w, "list transactions", err)
		return
	}

	response.WithMeta(w, items, response.NewMeta(total, p.Page, p.Limit))
}

// CreatePurchase handles POST /tokens/purchases
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CreatePurchaseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	row, err := h.svc.CreatePurchase(r.Context(), sellerID, PurchaseRequest{
		Tokens:        req.Tokens,
		PricePaid:     req.PricePaid,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		RespondError(r.Context(), w, "create purchase", err)
		return
	}

	response.Created(w, purchaseResponse(row))
}

// Routes mounts the seller routes. mutating wraps the routes that write.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, mutating ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireSeller())

	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.ListTransactions)
	r.With(mutating...).Post("/account", h.EnsureAccount)
	r.With(mutating...).Post("/purchases", h.CreatePurchase)

	return r
}
