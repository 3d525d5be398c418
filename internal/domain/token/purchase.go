package token

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marketly/marketly-api/internal/pkg/telemetry"
)

// PurchaseRequest opens a token purchase awaiting gateway confirmation.
type PurchaseRequest struct {
	Tokens        int
	PricePaid     float64
	PaymentMethod string
}

// CreatePurchase records a pending purchase row. The balance does not change
// until the gateway confirms the payment reference.
func (s *Service) CreatePurchase(ctx context.Context, sellerID uuid.UUID, req PurchaseRequest) (*Transaction, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	if req.Tokens < 1 || req.PricePaid < 0 || method == "" {
		return nil, ErrInvalidAmount
	}

	var row *Transaction
	err := s.withAccount(ctx, sellerID, func(ctx context.Context, tx AccountTx) error {
		price := req.PricePaid
		reference := "tok_" + uuid.NewString()
		row = &Transaction{
			ID:               uuid.New(),
			SellerID:         sellerID,
			Type:             TxTypePurchase,
			TokensAmount:     req.Tokens,
			PricePaid:        &price,
			PaymentMethod:    &method,
			PaymentReference: &reference,
			Status:           TxStatusPending,
			CreatedAt:        s.now(),
		}
		return tx.AppendTransaction(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("seller_id", sellerID.String()).
		Str("reference", *row.PaymentReference).
		Int("tokens", req.Tokens).
		Msg("token purchase pending")

	return row, nil
}

// ConfirmPurchase completes a pending purchase and credits its tokens to the
// paid pool in one transaction. Confirming an already completed purchase is
// a no-op, so gateway retries are safe.
func (s *Service) ConfirmPurchase(ctx context.Context, reference string) (*Transaction, error) {
	return s.settlePurchase(ctx, reference, TxStatusCompleted)
}

// FailPurchase marks a pending purchase failed. The balance is untouched.
func (s *Service) FailPurchase(ctx context.Context, reference string) (*Transaction, error) {
	return s.settlePurchase(ctx, reference, TxStatusFailed)
}

func (s *Service) settlePurchase(ctx context.Context, reference string, to TxStatus) (*Transaction, error) {
	ctx, span := telemetry.Start(ctx, tracerName, "token.SettlePurchase",
		attribute.String("reference", reference),
		attribute.String("status", string(to)),
	)

	pending, err := s.store.GetPurchase(ctx, reference)
	if err != nil {
		telemetry.End(span, err)
		return nil, err
	}

	var (
		row     *Transaction
		after   Account
		now     time.Time
		settled bool
	)
	err = s.store.WithAccountLock(ctx, pending.SellerID, func(ctx context.Context, tx AccountTx) error {
		now = s.now()

		locked, err := tx.LockPurchase(ctx, reference)
		if err != nil {
			return err
		}
		row = locked

		switch locked.Status {
		case to:
			return nil
		case TxStatusPending:
		default:
			return ErrPurchaseNotPending
		}

		if to == TxStatusCompleted {
			acc := tx.Account()
			acc.Normalize(now)
			acc.CreditPaid(locked.TokensAmount)
			if err := tx.SaveAccount(ctx, acc); err != nil {
				return err
			}
			after = *acc
		}

		if err := tx.SetTransactionStatus(ctx, locked.ID, to); err != nil {
			return err
		}
		row.Status = to
		settled = true
		return nil
	})
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}
	if !settled {
		return row, nil
	}

	log.Info().
		Str("seller_id", row.SellerID.String()).
		Str("reference", reference).
		Str("status", string(to)).
		Int("tokens", row.TokensAmount).
		Msg("token purchase settled")

	if to == TxStatusCompleted {
		s.invalidate(ctx, row.SellerID)
		s.publishTransaction(ctx, row, &after, now)
	}
	return row, nil
}
