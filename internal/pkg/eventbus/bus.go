package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marketly/marketly-api/internal/pkg/logger"
)

// Subjects published by the ledger.
const (
	TopicTransactionCreated = "tokens.transaction_created"
	TopicLowBalance         = "tokens.low_balance"
	TopicBoostExpired       = "boost.expired"
)

// Subjects the payment gateway publishes to.
const (
	SubjectPaymentConfirmed = "payments.confirmed"
	SubjectPaymentFailed    = "payments.failed"
)

// Publisher sends an already encoded event to a topic.
type Publisher interface {
	Publish(topic string, data []byte) error
}

// Connect dials NATS. An empty url disables the bus and returns a nil connection.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// NatsBus publishes events over a NATS connection.
type NatsBus struct {
	nc *nats.Conn
}

func NewNatsBus(nc *nats.Conn) *NatsBus {
	return &NatsBus{nc: nc}
}

func (b *NatsBus) Publish(topic string, data []byte) error {
	return b.nc.Publish(topic, data)
}

// NopBus drops every event. Used when NATS is not configured.
type NopBus struct{}

func (NopBus) Publish(string, []byte) error { return nil }

// PublishJSON encodes v and publishes it. Delivery is best effort: failures
// are logged and never reach the caller, whose transaction already committed.
func PublishJSON(ctx context.Context, pub Publisher, topic string, v interface{}) {
	if pub == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("topic", topic).Msg("Failed to encode event")
		return
	}

	if err := pub.Publish(topic, data); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}
