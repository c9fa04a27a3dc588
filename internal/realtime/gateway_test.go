package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewmaxx/backend/internal/config"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/pkg/models"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (s *memoryUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *memoryUserStore) UpdateRefreshToken(ctx context.Context, userID string, tok *string) error {
	return nil
}

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (s *memoryTokenStore) SetRefreshToken(ctx context.Context, userID, tok string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = tok
	return nil
}

func (s *memoryTokenStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID], nil
}

func (s *memoryTokenStore) DeleteRefreshToken(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

type gatewayFixture struct {
	gateway *Gateway
	hub     *Hub
	tokens  *token.Service
	users   *memoryUserStore
	server  *httptest.Server
}

func setupGateway(t *testing.T) *gatewayFixture {
	gin.SetMode(gin.TestMode)

	users := &memoryUserStore{users: map[string]*models.User{
		"alice": {ID: "alice", Email: "alice@example.com", Username: "alice", Role: models.UserRoleUser},
		"bob":   {ID: "bob", Email: "bob@example.com", Username: "bob", Role: models.UserRoleUser},
	}}

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	tokens := token.NewService(users, &memoryTokenStore{tokens: make(map[string]string)}, config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, logger)

	hub := NewHub(logger)
	gateway := NewGateway(hub, NewAuthenticator(tokens, users), logger)

	router := gin.New()
	router.GET("/ws", gateway.HandleConnection)
	router.GET("/ws/guest", gateway.HandleGuestConnection)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &gatewayFixture{
		gateway: gateway,
		hub:     hub,
		tokens:  tokens,
		users:   users,
		server:  server,
	}
}

func (f *gatewayFixture) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + path
}

func (f *gatewayFixture) accessToken(t *testing.T, userID string) string {
	user, err := f.users.FindUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	pair, err := f.tokens.Issue(context.Background(), user)
	require.NoError(t, err)
	return pair.AccessToken
}

func (f *gatewayFixture) connect(t *testing.T, userID string) *websocket.Conn {
	url := f.wsURL("/ws") + "?token=" + f.accessToken(t, userID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Event: event, Data: data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) Message {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandshakeRejectedWithoutToken(t *testing.T) {
	f := setupGateway(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.hub.ClientCount())
}

func TestHandshakeRejectedForDeletedUser(t *testing.T) {
	f := setupGateway(t)

	accessToken := f.accessToken(t, "alice")
	f.users.mu.Lock()
	delete(f.users.users, "alice")
	f.users.mu.Unlock()

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("/ws")+"?token="+accessToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// No room join happened
	assert.Equal(t, 0, f.hub.ClientCount())
	assert.Equal(t, 0, f.hub.RoomSize(UserRoom("alice")))
}

func TestHandshakeRejectedForRestrictedUser(t *testing.T) {
	f := setupGateway(t)

	accessToken := f.accessToken(t, "alice")
	f.users.mu.Lock()
	f.users.users["alice"].IsSuspended = true
	f.users.mu.Unlock()

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("/ws")+"?token="+accessToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectionJoinsPersonalRoom(t *testing.T) {
	f := setupGateway(t)

	conn := f.connect(t, "alice")
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.RoomSize(UserRoom("alice")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGuestConnectionAllowedWithoutToken(t *testing.T) {
	f := setupGateway(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL("/ws/guest"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestViewerJoinedGoesToOthersNotSelf(t *testing.T) {
	f := setupGateway(t)

	alice := f.connect(t, "alice")
	sendEvent(t, alice, EventWatchVideo, gin.H{"video_id": "v1"})

	require.Eventually(t, func() bool {
		return f.hub.RoomSize(VideoRoom("v1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	bob := f.connect(t, "bob")
	sendEvent(t, bob, EventWatchVideo, gin.H{"video_id": "v1"})

	// Alice, already in the room, hears about bob
	msg := readEvent(t, alice)
	assert.Equal(t, EventViewerJoined, msg.Event)

	var notice map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &notice))
	assert.Equal(t, "bob", notice["user_id"])
	assert.NotEmpty(t, notice["timestamp"])

	// Bob gets nothing about his own join
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var stray Message
	err := bob.ReadJSON(&stray)
	assert.Error(t, err, "sender must not receive its own viewer_joined notice")
}

func TestLiveMessageStampsSenderIdentity(t *testing.T) {
	f := setupGateway(t)

	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	sendEvent(t, alice, EventJoinLiveChat, gin.H{"video_id": "v1"})
	sendEvent(t, bob, EventJoinLiveChat, gin.H{"video_id": "v1"})

	require.Eventually(t, func() bool {
		return f.hub.RoomSize(LiveRoom("v1")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Alice tries to impersonate another sender in the payload
	sendEvent(t, alice, EventLiveMessage, gin.H{
		"video_id": "v1",
		"message":  gin.H{"text": "hello", "user_id": "spoofed"},
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readEvent(t, conn)
		require.Equal(t, EventLiveMessage, msg.Event)

		var chat map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Data, &chat))
		assert.Equal(t, "hello", chat["text"])
		assert.Equal(t, "alice", chat["user_id"], "sender id must come from the session, not the payload")
		assert.NotEmpty(t, chat["timestamp"])
	}
}

func TestNewCommentRelayedToRoom(t *testing.T) {
	f := setupGateway(t)

	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	sendEvent(t, alice, EventWatchVideo, gin.H{"video_id": "v2"})
	require.Eventually(t, func() bool {
		return f.hub.RoomSize(VideoRoom("v2")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sendEvent(t, bob, EventWatchVideo, gin.H{"video_id": "v2"})

	// Drain alice's viewer_joined notice for bob
	msg := readEvent(t, alice)
	require.Equal(t, EventViewerJoined, msg.Event)

	sendEvent(t, bob, EventNewComment, gin.H{
		"video_id": "v2",
		"comment":  gin.H{"content": "great video"},
	})

	msg = readEvent(t, alice)
	assert.Equal(t, EventCommentAdded, msg.Event)
	assert.Contains(t, string(msg.Data), "great video")
}

func TestNotifyUserReachesPersonalRoomOnly(t *testing.T) {
	f := setupGateway(t)

	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	require.Eventually(t, func() bool {
		return f.hub.RoomSize(UserRoom("alice")) == 1 && f.hub.RoomSize(UserRoom("bob")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.gateway.NotifyUser("alice", "new_subscriber", gin.H{
		"user_id":  "bob",
		"username": "bob",
	})

	msg := readEvent(t, alice)
	assert.Equal(t, "new_subscriber", msg.Event)

	var notice map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &notice))
	assert.Equal(t, "bob", notice["user_id"])

	// Bob's personal room stays quiet
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var stray Message
	err := bob.ReadJSON(&stray)
	assert.Error(t, err, "a notification must stay inside the target's personal room")
}

func TestDisconnectTearsDownRooms(t *testing.T) {
	f := setupGateway(t)

	alice := f.connect(t, "alice")
	sendEvent(t, alice, EventWatchVideo, gin.H{"video_id": "v3"})

	require.Eventually(t, func() bool {
		return f.hub.RoomSize(VideoRoom("v3")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	alice.Close()

	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 0 && f.hub.RoomSize(VideoRoom("v3")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
