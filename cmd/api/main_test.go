package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMountProductRoutes_BoostNestedUnderProduct(t *testing.T) {
	root := chi.NewRouter()

	products := chi.NewRouter()
	products.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Route", "product")
		w.WriteHeader(http.StatusOK)
	})
	products.Get("/boosted", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Route", "boosted")
		w.WriteHeader(http.StatusOK)
	})

	boosts := chi.NewRouter()
	boosts.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Route", "boost:"+chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusOK)
	})
	boosts.Post("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Route", "boost-create:"+chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusCreated)
	})

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.Fatalf("registering product routes panicked: %v", rec)
			}
		}()
		mountProductRoutes(root, products, boosts)
	}()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		route  string
	}{
		{"product by id", http.MethodGet, "/products/123", http.StatusOK, "product"},
		{"boosted listing", http.MethodGet, "/products/boosted", http.StatusOK, "boosted"},
		{"boost state", http.MethodGet, "/products/123/boost", http.StatusOK, "boost:123"},
		{"boost create", http.MethodPost, "/products/123/boost", http.StatusCreated, "boost-create:123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			root.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			if got := rr.Header().Get("X-Route"); got != tt.route {
				t.Fatalf("expected route %q, got %q", tt.route, got)
			}
		})
	}
}
