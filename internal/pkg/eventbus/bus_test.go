package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	topics []string
	data   [][]byte
	err    error
}

func (r *recordingBus) Publish(topic string, data []byte) error {
	r.topics = append(r.topics, topic)
	r.data = append(r.data, data)
	return r.err
}

func TestPublishJSON(t *testing.T) {
	bus := &recordingBus{}

	PublishJSON(context.Background(), bus, TopicLowBalance, map[string]int{"balance": 1})

	require.Len(t, bus.topics, 1)
	assert.Equal(t, TopicLowBalance, bus.topics[0])

	var payload map[string]int
	require.NoError(t, json.Unmarshal(bus.data[0], &payload))
	assert.Equal(t, 1, payload["balance"])
}

func TestPublishJSONSwallowsErrors(t *testing.T) {
	bus := &recordingBus{err: errors.New("nats down")}

	assert.NotPanics(t, func() {
		PublishJSON(context.Background(), bus, TopicBoostExpired, struct{}{})
	})
	assert.NotPanics(t, func() {
		PublishJSON(context.Background(), nil, TopicBoostExpired, struct{}{})
	})
	assert.NotPanics(t, func() {
		PublishJSON(context.Background(), bus, TopicBoostExpired, make(chan int))
	})
	assert.Len(t, bus.topics, 1)
}

func TestConnectWithoutURL(t *testing.T) {
	nc, err := Connect("", "test")
	assert.NoError(t, err)
	assert.Nil(t, nc)
}
