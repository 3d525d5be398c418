package product_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketly/marketly-api/internal/domain/product"
	"github.com/marketly/marketly-api/internal/domain/token"
	"github.com/marketly/marketly-api/internal/middleware"
	"github.com/marketly/marketly-api/internal/pkg/jwt"
)

func withSeller(sellerID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, sellerID)
			ctx = context.WithValue(ctx, middleware.RoleKey, jwt.RoleSeller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlerPublish(t *testing.T) {
	f := newFixture()
	sellerID := uuid.New()
	f.ledger.Put(token.Account{SellerID: sellerID, PaidTokens: 1, TokenBalance: 1})
	router := product.NewHandler(f.svc).Routes(withSeller(sellerID))

	body, _ := json.Marshal(map[string]interface{}{"title": "Desk lamp", "price": 20})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"title":"x"}`))))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlerGetAndOwnership(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	id := uuid.New()
	f.products.items[id] = product.Product{ID: id, SellerID: owner, Title: "Lamp", Status: product.StatusActive}

	router := product.NewHandler(f.svc).Routes(withSeller(uuid.New()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/"+id.String()+"/status", bytes.NewReader([]byte(`{"status":"inactive"}`))))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlerListBoostedIsPublic(t *testing.T) {
	f := newFixture()
	boostedAt := t0
	until := t0.Add(24 * time.Hour)
	id := uuid.New()
	f.products.items[id] = product.Product{ID: id, SellerID: uuid.New(), Title: "Lamp", Status: product.StatusActive, IsBoosted: true, BoostedAt: &boostedAt, BoostedUntil: &until}

	denyAll := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := product.NewHandler(f.svc).Routes(denyAll)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boosted", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env struct {
		Data struct {
			Items []product.Response `json:"items"`
			Total int                `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data.Items, 1)
	assert.Equal(t, id, env.Data.Items[0].ID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mine", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
