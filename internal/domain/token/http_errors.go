package token

import (
	"context"
	"errors"
	"net/http"

	"github.com/marketly/marketly-api/internal/pkg/errorhandler"
	"github.com/marketly/marketly-api/internal/pkg/response"
)

// RespondError writes the envelope for a ledger error. Handlers of domains
// that spend tokens fall back to it for errors they do not own.
func RespondError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		response.PaymentRequired(w, "Not enough tokens")
	case errors.Is(err, ErrConcurrentModification):
		response.RetryableConflict(w, "The account is being updated, please retry")
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, "Token account not found")
	case errors.Is(err, ErrPurchaseNotFound):
		response.NotFound(w, "Purchase not found")
	case errors.Is(err, ErrPurchaseNotPending):
		response.Conflict(w, "Purchase is already settled")
	case errors.Is(err, ErrDuplicateReference):
		response.Conflict(w, "Payment reference already used")
	case IsValidationError(err):
		response.BadRequest(w, err.Error())
	default:
		errorhandler.Internal(ctx, w, op, err)
	}
}
