package token

import "errors"

var (
	// ErrInsufficientBalance is returned when the effective balance cannot cover a debit.
	// Nothing is written.
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrConcurrentModification is returned when the account row could not be
	// locked in time or changed under us. The whole operation may be retried.
	ErrConcurrentModification = errors.New("concurrent modification, retry the operation")

	// ErrAccountNotFound is returned when a seller has no token account yet
	ErrAccountNotFound = errors.New("token account not found")

	// ErrInvalidCost is returned when a spend cost is < 1
	ErrInvalidCost = errors.New("invalid cost: must be at least 1")

	// ErrInvalidAmount is returned for a zero adjustment or a non-positive purchase
	ErrInvalidAmount = errors.New("invalid amount")

	ErrReasonRequired = errors.New("reason is required")
	ErrActorRequired  = errors.New("actor is required")
	ErrInvalidTxType  = errors.New("invalid transaction type")

	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrPurchaseNotPending = errors.New("purchase is not pending")
	ErrDuplicateReference = errors.New("payment reference already used")

	// ErrPersistence wraps storage failures. The transaction has been rolled back.
	ErrPersistence = errors.New("token ledger persistence failure")
)

// IsValidationError reports whether err was raised before any lock was taken.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCost) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrInvalidTxType)
}
