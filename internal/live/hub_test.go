package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub) *Client {
	return &Client{id: newClientID(), hub: h, send: make(chan Message, sendBuffer)}
}

func TestHubRegisterUnregister(t *testing.T) {
	h := NewHub(nil)
	c := newTestClient(h)

	h.register(c)
	assert.Equal(t, 1, h.ClientCount())

	h.unregister(c)
	assert.Equal(t, 0, h.ClientCount())

	// Second unregister of the same client is a no-op.
	h.unregister(c)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHubNotifyDeliversToAllClients(t *testing.T) {
	h := NewHub(nil)
	c1 := newTestClient(h)
	c2 := newTestClient(h)
	h.register(c1)
	h.register(c2)

	h.Notify("recording_started", map[string]interface{}{"game_id": "game_x"})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "recording_started", msg.Event)
			assert.NotEmpty(t, msg.Timestamp)
		default:
			t.Fatal("client did not receive the broadcast")
		}
	}
}

func TestHubNotifyDropsForLaggingClient(t *testing.T) {
	h := NewHub(nil)
	c := &Client{id: newClientID(), hub: h, send: make(chan Message, 1)}
	h.register(c)

	h.Notify("game_event", nil)
	h.Notify("game_event", nil) // buffer full, must not block

	require.Len(t, c.send, 1)
}

func TestHubNotifyWithoutClients(t *testing.T) {
	h := NewHub(nil)
	h.Notify("recording_stopped", nil) // must not panic
	assert.Equal(t, 0, h.ClientCount())
}
