package product

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketly/marketly-api/internal/domain/token"
	"github.com/marketly/marketly-api/internal/middleware"
	"github.com/marketly/marketly-api/internal/pkg/errorhandler"
	"github.com/marketly/marketly-api/internal/pkg/response"
	"github.com/marketly/marketly-api/internal/pkg/validator"
)

// Handler handles product HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates new product handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Publish handles POST /products
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PublishRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	p, err := h.service.Publish(r.Context(), sellerID, &req)
	if err != nil {
		respondError(r.Context(), w, "publish product", err)
		return
	}

	response.Created(w, p.ToResponse(h.service.Now()))
}

// Get handles GET /products/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondError(r.Context(), w, "get product", err)
		return
	}

	response.OK(w, p.ToResponse(h.service.Now()))
}

// ListBoosted handles GET /products/boosted
func (h *Handler) ListBoosted(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.ListBoosted(r.Context(), limit)
	if err != nil {
		respondError(r.Context(), w, "list boosted products", err)
		return
	}

	response.OK(w, map[string]interface{}{
		"items": toResponses(items, h.service.Now()),
		"total": len(items),
	})
}

// ListMine handles GET /products/mine
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	if sellerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	p := token.Pagination{Page: page, Limit: limit}

	items, total, err := h.service.ListMine(r.Context(), sellerID, p)
	if err != nil {
		respondError(r.Context(), w, "list seller products", err)
		return
	}

	p.Normalize()
	response.WithMeta(w, toResponses(items, h.service.Now()), response.NewMeta(total, p.Page, p.Limit))
}

// UpdateStatus handles PATCH /products/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	var req UpdateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	if err := h.service.UpdateStatus(r.Context(), id, sellerID, Status(req.Status)); err != nil {
		respondError(r.Context(), w, "update product status", err)
		return
	}

	response.NoContent(w)
}

func respondError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		response.NotFound(w, "Product not found")
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(w, "You do not own this product")
	case errors.Is(err, ErrInvalidStatus):
		response.BadRequest(w, err.Error())
	default:
		token.RespondError(ctx, w, op, err)
	}
}

// Routes returns product router. Reads are public; writes need a seller.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, mutating ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/boosted", h.ListBoosted)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireSeller())

		r.Get("/mine", h.ListMine)
		r.With(mutating...).Post("/", h.Publish)
		r.With(mutating...).Patch("/{id}/status", h.UpdateStatus)
	})

	return r
}
