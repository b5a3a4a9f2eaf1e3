package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	body, err := json.Marshal(map[string]string{"event_id": "evt-1"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, Message{Type: "registration", Body: body}))

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, "registration", msg.Type)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(msg.Body, &payload))
		assert.Equal(t, "evt-1", payload["event_id"])
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Message{Type: "registration"}))

	// Queue is full; a cancelled context unblocks the publisher.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Publish(cancelled, Message{Type: "registration"})
	assert.ErrorIs(t, err, context.Canceled)
}
