package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewmaxx/backend/internal/logging"
)

func quietHub(t *testing.T) *Hub {
	logger, err := logging.NewLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	return NewHub(logger)
}

func hubClient(userID string) *Client {
	return &Client{
		session: &Session{UserID: userID},
		send:    make(chan Message, 1),
	}
}

func TestBroadcastDuringDisconnectDoesNotPanic(t *testing.T) {
	hub := quietHub(t)
	room := VideoRoom("busy")

	const members = 500
	clients := make([]*Client, 0, members)
	for i := 0; i < members; i++ {
		c := hubClient("u")
		hub.register(c)
		hub.Join(c, room)
		clients = append(clients, c)
	}

	message, err := NewMessage(EventViewerJoined, map[string]string{"user_id": "u"})
	require.NoError(t, err)

	// Broadcasters hammer the room while every member disconnects underneath
	// them. A send must never hit a channel that unregister already closed.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					hub.BroadcastToRoom(room, message, nil)
				}
			}
		}()
	}

	for _, c := range clients {
		hub.unregister(c)
	}
	close(done)
	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.RoomSize(room))
}

func TestBroadcastSkipsSlowConsumer(t *testing.T) {
	hub := quietHub(t)
	room := LiveRoom("v1")

	fast := hubClient("fast")
	slow := hubClient("slow")
	for _, c := range []*Client{fast, slow} {
		hub.register(c)
		hub.Join(c, room)
	}

	message, err := NewMessage(EventLiveMessage, map[string]string{"text": "hi"})
	require.NoError(t, err)

	// Fill the slow consumer's buffer; further sends to it are dropped while
	// the rest of the room keeps receiving.
	hub.BroadcastToRoom(room, message, nil)
	hub.BroadcastToRoom(room, message, nil)

	assert.Len(t, fast.send, 1, "buffered one, dropped one")
	assert.Len(t, slow.send, 1)

	<-fast.send
	hub.BroadcastToRoom(room, message, nil)
	assert.Len(t, fast.send, 1, "draining frees the buffer for the next broadcast")
}
