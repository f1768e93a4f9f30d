package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient() *Client {
	return &Client{send: make(chan []byte, sendBuffer)}
}

func recvFrame(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case payload := <-c.send:
		var f frame
		require.NoError(t, json.Unmarshal(payload, &f))
		return f
	default:
		t.Fatal("expected a frame on the send queue")
		return frame{}
	}
}

func TestPublishReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	inRoom := testClient()
	elsewhere := testClient()

	hub.Join(inRoom, "daily_1")
	hub.Join(elsewhere, "daily_2")

	hub.Publish("daily_1", "message:new", map[string]any{"id": 42})

	f := recvFrame(t, inRoom)
	assert.Equal(t, "message:new", f.Event)
	assert.Empty(t, elsewhere.send)
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	hub.Publish("daily_9", "message:new", "x")
	assert.Zero(t, hub.RoomSize("daily_9"))
}

func TestJoinIsIdempotentPerRoom(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient()

	hub.Join(c, "daily_1")
	hub.Join(c, "daily_1")
	assert.Equal(t, 1, hub.RoomSize("daily_1"))
}

func TestRemoveDropsClientFromEveryRoom(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient()
	other := testClient()

	hub.Join(c, "daily_1")
	hub.Join(c, "daily_2")
	hub.Join(other, "daily_1")

	hub.Remove(c)

	assert.Equal(t, 1, hub.RoomSize("daily_1"))
	assert.Zero(t, hub.RoomSize("daily_2"))

	hub.Publish("daily_1", "message:new", "x")
	assert.Empty(t, c.send)
	assert.Len(t, other.send, 1)
}

func TestPublishSkipsClientWithFullBuffer(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	slow := &Client{send: make(chan []byte)}
	fast := testClient()

	hub.Join(slow, "daily_1")
	hub.Join(fast, "daily_1")

	// Must not block on the unbuffered slow client.
	hub.Publish("daily_1", "message:new", "x")
	assert.Len(t, fast.send, 1)
}

func TestRejoinAfterRemove(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient()

	hub.Join(c, "daily_1")
	hub.Remove(c)
	hub.Join(c, "daily_1")

	hub.Publish("daily_1", "message:updated", "x")
	f := recvFrame(t, c)
	assert.Equal(t, "message:updated", f.Event)
}
