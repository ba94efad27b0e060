package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_PublishScopedToEvent(t *testing.T) {
	hub := NewHub(quietLogger())
	a := hub.Join("event-a")
	b := hub.Join("event-b")

	hub.Publish(context.Background(), Message{Type: TypeRecordsCreated, EventID: "event-a",
		Records: []model.Record{{ID: "r1"}}})

	select {
	case msg := <-a.C():
		assert.Equal(t, "event-a", msg.EventID)
		require.Len(t, msg.Records, 1)
		assert.Equal(t, "r1", msg.Records[0].ID)
	default:
		t.Fatal("subscriber of event-a got nothing")
	}
	assert.Empty(t, b.C())
}

func TestHub_LeaveClosesChannel(t *testing.T) {
	hub := NewHub(quietLogger())
	sub := hub.Join("event-a")
	assert.Equal(t, 1, hub.Subscribers("event-a"))

	hub.Leave(sub)
	hub.Leave(sub)

	_, open := <-sub.C()
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers("event-a"))

	// Publishing to an event nobody watches is harmless.
	hub.Publish(context.Background(), Message{EventID: "event-a"})
}

func TestHub_PublishDoesNotBlockOnSlowViewer(t *testing.T) {
	hub := NewHub(quietLogger())
	slow := hub.Join("event-a")

	for i := 0; i < DefaultBuffer*3; i++ {
		hub.Publish(context.Background(), Message{Type: TypeRecordsCreated, EventID: "event-a"})
	}
	assert.Len(t, slow.C(), DefaultBuffer)
}

func TestRedisRelay_Deliver(t *testing.T) {
	hub := NewHub(quietLogger())
	sub := hub.Join("event-a")
	relay := NewRedisRelay(nil, hub, quietLogger())

	payload, err := json.Marshal(Message{Type: TypeRecordsReset})
	require.NoError(t, err)
	relay.deliver(context.Background(), &redis.Message{Channel: channelFor("event-a"), Payload: string(payload)})
	relay.deliver(context.Background(), &redis.Message{Channel: channelFor("event-a"), Payload: "{not json"})

	require.Len(t, sub.C(), 1)
	msg := <-sub.C()
	assert.Equal(t, TypeRecordsReset, msg.Type)
	assert.Equal(t, "event-a", msg.EventID)
}
