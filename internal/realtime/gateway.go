package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/metrics"
	"github.com/viewmaxx/backend/internal/respond"
	"github.com/viewmaxx/backend/internal/token"
)

// Gateway authenticates socket connections and routes room-scoped events.
// It never persists anything itself: comment and chat payloads are relayed,
// persistence belongs to the HTTP handlers.
type Gateway struct {
	hub      *Hub
	auth     *Authenticator
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewGateway creates a new realtime gateway
func NewGateway(hub *Hub, auth *Authenticator, logger *logging.Logger) *Gateway {
	return &Gateway{
		hub:    hub,
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the frontend origin; CORS is enforced
			// at the token level, not the origin level
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Hub exposes the gateway's hub for server-side broadcasts
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// handshakeToken extracts the credential from the handshake request:
// the token query parameter or the Authorization header.
func handshakeToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}

	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}

	return ""
}

// rejectionReason maps an authentication failure to a metric label and a
// client-facing message
func rejectionReason(err error) (string, string) {
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return "missing_token", "Authentication error"
	case errors.Is(err, token.ErrInvalidToken):
		return "invalid_token", "Invalid token"
	case errors.Is(err, token.ErrTokenExpired):
		return "token_expired", "Token expired"
	case errors.Is(err, token.ErrUserNotFound):
		return "user_not_found", "User not found"
	case errors.Is(err, token.ErrAccountRestricted):
		return "account_restricted", "Account restricted"
	default:
		return "error", "Authentication error"
	}
}

// HandleConnection upgrades an authenticated websocket connection. The
// handshake is rejected before the upgrade when authentication fails.
func (g *Gateway) HandleConnection(c *gin.Context) {
	session, err := g.auth.Authenticate(c.Request.Context(), handshakeToken(c.Request))
	if err != nil {
		reason, message := rejectionReason(err)
		metrics.SocketRejectionsTotal.WithLabelValues(reason).Inc()
		g.logger.WithError(err).Warn("socket authentication failed")
		respond.Error(c, http.StatusUnauthorized, message)
		return
	}

	g.accept(c, session)
}

// HandleGuestConnection upgrades a connection under the optional-auth
// variant: authentication failures produce a guest session instead of a
// rejection.
func (g *Gateway) HandleGuestConnection(c *gin.Context) {
	session := g.auth.AuthenticateOptional(c.Request.Context(), handshakeToken(c.Request))
	g.accept(c, session)
}

func (g *Gateway) accept(c *gin.Context, session *Session) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(g, conn, session)
	g.hub.register(client)

	// Personal room for targeted notifications
	if session.Authenticated() {
		g.hub.Join(client, UserRoom(session.UserID))
	}

	client.start()
}

type watchVideoPayload struct {
	VideoID string `json:"video_id"`
}

type newCommentPayload struct {
	VideoID string          `json:"video_id"`
	Comment json.RawMessage `json:"comment"`
}

type liveMessagePayload struct {
	VideoID string          `json:"video_id"`
	Message json.RawMessage `json:"message"`
}

// handleEvent dispatches one client-sent event
func (g *Gateway) handleEvent(c *Client, msg Message) {
	switch msg.Event {
	case EventWatchVideo:
		g.onWatchVideo(c, msg.Data)
	case EventNewComment:
		g.onNewComment(c, msg.Data)
	case EventJoinLiveChat:
		g.onJoinLiveChat(c, msg.Data)
	case EventLiveMessage:
		g.onLiveMessage(c, msg.Data)
	default:
		g.logger.WithField("event", msg.Event).Debug("ignoring unknown socket event")
	}
}

// onWatchVideo joins the viewer room for a video and tells the other
// members, not the sender, that a viewer arrived
func (g *Gateway) onWatchVideo(c *Client, data json.RawMessage) {
	var payload watchVideoPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.VideoID == "" {
		return
	}

	room := VideoRoom(payload.VideoID)
	g.hub.Join(c, room)

	notice, err := NewMessage(EventViewerJoined, gin.H{
		"user_id":   c.session.UserID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	g.hub.BroadcastToRoom(room, notice, c)
	metrics.SocketEventsTotal.WithLabelValues(EventWatchVideo).Inc()
	g.logger.LogSocketEvent(EventWatchVideo, c.session.UserID, room)
}

// onNewComment relays a comment notice to the video room. The comment
// itself is persisted through the HTTP API, not here.
func (g *Gateway) onNewComment(c *Client, data json.RawMessage) {
	var payload newCommentPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.VideoID == "" {
		return
	}

	g.hub.BroadcastToRoom(VideoRoom(payload.VideoID), Message{
		Event: EventCommentAdded,
		Data:  payload.Comment,
	}, c)
	metrics.SocketEventsTotal.WithLabelValues(EventNewComment).Inc()
}

func (g *Gateway) onJoinLiveChat(c *Client, data json.RawMessage) {
	var payload watchVideoPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.VideoID == "" {
		return
	}

	g.hub.Join(c, LiveRoom(payload.VideoID))
	metrics.SocketEventsTotal.WithLabelValues(EventJoinLiveChat).Inc()
}

// onLiveMessage fans a chat message out to the whole live room, sender
// included. The sender identity is stamped from the connection's session,
// never from the payload.
func (g *Gateway) onLiveMessage(c *Client, data json.RawMessage) {
	var payload liveMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.VideoID == "" {
		return
	}

	stamped := make(map[string]interface{})
	if len(payload.Message) > 0 {
		if err := json.Unmarshal(payload.Message, &stamped); err != nil {
			return
		}
	}
	stamped["user_id"] = c.session.UserID
	stamped["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	message, err := NewMessage(EventLiveMessage, stamped)
	if err != nil {
		return
	}

	g.hub.BroadcastToRoom(LiveRoom(payload.VideoID), message, nil)
	metrics.SocketEventsTotal.WithLabelValues(EventLiveMessage).Inc()
}

// BroadcastCommentAdded pushes a persisted comment to the video's viewer
// room, used by the HTTP comment handler after a successful write
func (g *Gateway) BroadcastCommentAdded(videoID string, comment interface{}) {
	message, err := NewMessage(EventCommentAdded, comment)
	if err != nil {
		g.logger.WithError(err).Error("failed to build comment_added message")
		return
	}

	g.hub.BroadcastToRoom(VideoRoom(videoID), message, nil)
	metrics.SocketEventsTotal.WithLabelValues(EventCommentAdded).Inc()
}

// NotifyUser pushes an event to a user's personal room
func (g *Gateway) NotifyUser(userID, event string, payload interface{}) {
	message, err := NewMessage(event, payload)
	if err != nil {
		g.logger.WithError(err).Error("failed to build notification message")
		return
	}

	g.hub.BroadcastToRoom(UserRoom(userID), message, nil)
}
