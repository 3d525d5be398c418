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

// AdminHandler serves manual adjustments and ledger inspection. Role checks
// happen in middleware; the service trusts the actor it is given.
type AdminHandler struct {
	svc *Service
}

func NewAdminHandler(svc *Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Adjust handles POST /admin/sellers/{id}/tokens/adjust
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	sellerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
		return
	}

	var req AdjustTokensRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	result := h.svc.AdminAdjust(r.Context(), AdjustRequest{
		SellerID: sellerID,
		Amount:   req.Amount,
		Reason:   req.Reason,
		ActorID:  middleware.GetUserID(r.Context()),
	})
	if !result.Success {
		RespondError(r.Context(), w, "admin adjust", result.Err)
		return
	}

	response.OK(w, result)
}

// Balance handles GET /admin/sellers/{id}/tokens
func (h *AdminHandler) Balance(w http.ResponseWriter, r *http.Request) {
	sellerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
		return
	}

	balance, err := h.svc.LookupBalance(r.Context(), sellerID)
	if err != nil {
		RespondError(r.Context(), w, "lookup balance", err)
		return
	}

	response.OK(w, balance)
}

// SellerTransactions handles GET /admin/sellers/{id}/tokens/transactions
func (h *AdminHandler) SellerTransactions(w http.ResponseWriter, r *http.Request) {
	sellerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
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

// Search handles GET /admin/token-transactions
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := parseSearchQuery(r)
	if errs := validator.Validate(&q); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	p := parsePagination(r)
	items, total, err := h.svc.SearchTransactions(r.Context(), q.Filters(p))
	if err != nil {
		RespondError(r.Context(), w, "search transactions", err)
		return
	}

	response.WithMeta(w, items, response.NewMeta(total, p.Page, p.Limit))
}

// Routes mounts the admin routes behind authentication and the admin role.
func (h *AdminHandler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Route("/sellers/{id}/tokens", func(r chi.Router) {
		r.Get("/", h.Balance)
		r.Post("/adjust", h.Adjust)
		r.Get("/transactions", h.SellerTransactions)
	})
	r.Get("/token-transactions", h.Search)

	return r
}
