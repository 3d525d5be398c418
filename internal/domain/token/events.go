package token

import (
	"time"

	"github.com/google/uuid"
)

// TransactionEvent is published after every committed ledger row.
type TransactionEvent struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	Type          TxType     `json:"type"`
	Status        TxStatus   `json:"status"`
	TokensAmount  int        `json:"tokens_amount"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	Balance       int        `json:"balance"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// LowBalanceEvent tells the notification system a seller is running out.
type LowBalanceEvent struct {
	SellerID   uuid.UUID `json:"seller_id"`
	Balance    int       `json:"balance"`
	Threshold  int       `json:"threshold"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentEvent is what the gateway publishes on payments.confirmed and payments.failed.
type PaymentEvent struct {
	Reference string `json:"reference"`
}
