package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/marketly/marketly-api/internal/pkg/errorhandler"
	"github.com/marketly/marketly-api/internal/pkg/eventbus"
	"github.com/marketly/marketly-api/internal/pkg/response"
	"github.com/marketly/marketly-api/internal/pkg/validator"
	"github.com/marketly/marketly-api/internal/pkg/webhook"
)

const maxCallbackBody = 64 << 10

// PaymentHandler receives purchase settlements from the payment gateway,
// either as signed HTTP callbacks or as NATS messages.
type PaymentHandler struct {
	svc    *Service
	secret string
}

func NewPaymentHandler(svc *Service, secret string) *PaymentHandler {
	return &PaymentHandler{svc: svc, secret: secret}
}

// Callback handles POST /webhooks/payments
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}

	if !webhook.VerifySignature(body, r.Header.Get(webhook.SignatureHeader), h.secret) {
		log.Warn().Str("ip", r.RemoteAddr).Msg("payment callback with invalid signature")
		response.Unauthorized(w, "Invalid signature")
		return
	}

	var req PaymentCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.Validation(r.Context(), w, errs)
		return
	}

	var row *Transaction
	if req.Status == "confirmed" {
		row, err = h.svc.ConfirmPurchase(r.Context(), req.Reference)
	} else {
		row, err = h.svc.FailPurchase(r.Context(), req.Reference)
	}
	if err != nil {
		RespondError(r.Context(), w, "settle purchase", err)
		return
	}

	response.OK(w, purchaseResponse(row))
}

// WebhookRoutes returns the unauthenticated gateway routes.
func (h *PaymentHandler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payments", h.Callback)
	return r
}

// Register subscribes the handler to the gateway subjects.
func (h *PaymentHandler) Register(sub *eventbus.Subscriber) {
	sub.Handle(eventbus.SubjectPaymentConfirmed, h.onConfirmed)
	sub.Handle(eventbus.SubjectPaymentFailed, h.onFailed)
}

func (h *PaymentHandler) onConfirmed(ctx context.Context, data []byte) error {
	ev, err := decodePaymentEvent(data)
	if err != nil {
		return err
	}
	_, err = h.svc.ConfirmPurchase(ctx, ev.Reference)
	return err
}

func (h *PaymentHandler) onFailed(ctx context.Context, data []byte) error {
	ev, err := decodePaymentEvent(data)
	if err != nil {
		return err
	}
	_, err = h.svc.FailPurchase(ctx, ev.Reference)
	return err
}

func decodePaymentEvent(data []byte) (PaymentEvent, error) {
	var ev PaymentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode payment event: %w", err)
	}
	if ev.Reference == "" {
		return ev, fmt.Errorf("decode payment event: %w", ErrPurchaseNotFound)
	}
	return ev, nil
}
