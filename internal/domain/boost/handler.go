package boost

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketly/marketly-api/internal/domain/product"
	"github.com/marketly/marketly-api/internal/domain/token"
	"github.com/marketly/marketly-api/internal/middleware"
	"github.com/marketly/marketly-api/internal/pkg/errorhandler"
	"github.com/marketly/marketly-api/internal/pkg/response"
	"github.com/marketly/marketly-api/internal/pkg/validator"
)

// Handler serves /products/{id}/boost.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Boost handles POST /products/{id}/boost
func (h *Handler) Boost(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	var req BoostRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	state, err := h.service.Boost(r.Context(), sellerID, productID, req.DurationHours)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	response.Created(w, state)
}

// State handles GET /products/{id}/boost
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	state, err := h.service.GetState(r.Context(), productID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	response.OK(w, state)
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDuration):
		response.BadRequest(w, err.Error())
	case errors.Is(err, product.ErrProductNotFound):
		response.NotFound(w, "Product not found")
	case errors.Is(err, product.ErrNotOwner):
		response.Forbidden(w, "You do not own this product")
	case errors.Is(err, ErrAlreadyBoosted):
		response.Error(w, http.StatusConflict, "ALREADY_BOOSTED", "Product is already boosted")
	case errors.Is(err, ErrNotEligible):
		response.Error(w, http.StatusConflict, "NOT_ELIGIBLE", err.Error())
	default:
		token.RespondError(ctx, w, "boost product", err)
	}
}

// Routes is mounted at /products/{id}/boost. The state read is public.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, mutating ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.State)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireSeller())
		r.With(mutating...).Post("/", h.Boost)
	})

	return r
}
