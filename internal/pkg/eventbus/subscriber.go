package eventbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// HandlerFunc processes one message payload.
type HandlerFunc func(ctx context.Context, data []byte) error

// Subscriber fans queue-group subscriptions out to handlers and drains them
// on shutdown.
type Subscriber struct {
	nc     *nats.Conn
	queue  string
	routes map[string]HandlerFunc
	subs   []*nats.Subscription
}

func NewSubscriber(nc *nats.Conn, queue string) *Subscriber {
	return &Subscriber{nc: nc, queue: queue, routes: make(map[string]HandlerFunc)}
}

// Handle registers fn for subject. Call before Start.
func (s *Subscriber) Handle(subject string, fn HandlerFunc) {
	s.routes[subject] = fn
}

// Start subscribes every route and blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	for subject, fn := range s.routes {
		subject, fn := subject, fn
		sub, err := s.nc.QueueSubscribe(subject, s.queue, func(m *nats.Msg) {
			if err := fn(ctx, m.Data); err != nil {
				log.Error().Err(err).Str("subject", subject).Msg("nats: handler failed")
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	log.Info().Int("subjects", len(s.subs)).Str("queue", s.queue).Msg("NATS subscriber is running")

	<-ctx.Done()
	log.Info().Msg("NATS subscriber shutting down, draining subscriptions...")

	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	return nil
}

func (s *Subscriber) Stop(ctx context.Context) error {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	return nil
}
