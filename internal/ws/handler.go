package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mycm.app/server/internal/auth"
	"mycm.app/server/internal/reflection"
)

const opTimeout = 10 * time.Second

// Server upgrades HTTP requests to reflection room sockets and dispatches their
// frames. Authentication is optional at connect time: anonymous sessions may
// join and receive broadcasts but any mutation is refused.
type Server struct {
	hub       *Hub
	resolver  *reflection.Resolver
	svc       *reflection.Service
	logger    *zap.SugaredLogger
	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewServer(hub *Hub, resolver *reflection.Resolver, svc *reflection.Service, logger *zap.SugaredLogger, jwtSecret string) *Server {
	return &Server{
		hub:       hub,
		resolver:  resolver,
		svc:       svc,
		logger:    logger,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle is the gin endpoint for GET /ws/reflections.
func (s *Server) Handle(c *gin.Context) {
	sess := s.sessionFromRequest(c)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err, "client_ip", c.ClientIP())
		return
	}

	client := newClient(s.hub, conn, sess)
	go client.writePump()
	go client.readPump(s.dispatch)
}

// sessionFromRequest accepts a bearer token from the Authorization header or a
// token query parameter (browsers cannot set headers on websocket dials). An
// invalid or missing token degrades to an anonymous session.
func (s *Server) sessionFromRequest(c *gin.Context) reflection.Session {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" || token == c.GetHeader("Authorization") {
		token = c.Query("token")
	}
	if token == "" {
		return reflection.Session{}
	}
	claims, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		s.logger.Warnw("rejecting socket token", "error", err, "client_ip", c.ClientIP())
		return reflection.Session{}
	}
	uid := claims.UserID
	return reflection.Session{UserID: &uid, Username: claims.Username, Role: claims.Role}
}

func (s *Server) dispatch(c *Client, f inboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch f.Event {
	case "join-today":
		s.handleJoinToday(ctx, c)
	case "message-create":
		s.handleCreate(ctx, c, f.Data)
	case "message-update":
		s.handleUpdate(ctx, c, f.Data)
	case "message-delete":
		s.handleDelete(ctx, c, f.Data)
	default:
		c.enqueue(frame{Event: f.Event, Data: gin.H{"ok": false, "error": "Unknown event"}})
	}
}

func (s *Server) handleJoinToday(ctx context.Context, c *Client) {
	d, err := s.resolver.Resolve(ctx, reflection.Today())
	if err != nil {
		s.logger.Errorw("join-today failed", "error", err)
		c.enqueue(frame{Event: "join-today", Data: gin.H{"ok": false, "error": ackError(err)}})
		return
	}
	s.hub.Join(c, reflection.RoomKey(d.ID))
	c.enqueue(frame{Event: "join-today", Data: gin.H{"ok": true, "dailyId": d.ID}})
}

func (s *Server) handleCreate(ctx context.Context, c *Client, raw json.RawMessage) {
	var payload struct {
		Content string `json:"content"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.enqueue(frame{Event: "message-create", Data: gin.H{"ok": false, "error": "Bad payload"}})
			return
		}
	}
	m, err := s.svc.Create(ctx, c.sess, payload.Content)
	if err != nil {
		s.logWarn("message-create failed", err)
		c.enqueue(frame{Event: "message-create", Data: gin.H{"ok": false, "error": ackError(err)}})
		return
	}
	c.enqueue(frame{Event: "message-create", Data: gin.H{"ok": true, "message": m}})
}

func (s *Server) handleUpdate(ctx context.Context, c *Client, raw json.RawMessage) {
	var payload struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.enqueue(frame{Event: "message-update", Data: gin.H{"ok": false, "error": "Bad payload"}})
		return
	}
	m, err := s.svc.Update(ctx, c.sess, payload.ID, payload.Content)
	if err != nil {
		s.logWarn("message-update failed", err)
		c.enqueue(frame{Event: "message-update", Data: gin.H{"ok": false, "error": ackError(err)}})
		return
	}
	c.enqueue(frame{Event: "message-update", Data: gin.H{"ok": true, "message": m}})
}

func (s *Server) handleDelete(ctx context.Context, c *Client, raw json.RawMessage) {
	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.enqueue(frame{Event: "message-delete", Data: gin.H{"ok": false, "error": "Bad payload"}})
		return
	}
	if err := s.svc.Delete(ctx, c.sess, payload.ID); err != nil {
		s.logWarn("message-delete failed", err)
		c.enqueue(frame{Event: "message-delete", Data: gin.H{"ok": false, "error": ackError(err)}})
		return
	}
	c.enqueue(frame{Event: "message-delete", Data: gin.H{"ok": true, "id": payload.ID}})
}

func (s *Server) logWarn(msg string, err error) {
	switch {
	case errors.Is(err, reflection.ErrNoPromptsAvailable):
		// Already logged at error level by the resolver.
	case errors.Is(err, reflection.ErrUpdateFailed), errors.Is(err, reflection.ErrDeleteFailed):
		s.logger.Errorw(msg, "error", err)
	default:
		s.logger.Warnw(msg, "error", err)
	}
}

// ackError translates service errors into the strings clients key off.
func ackError(err error) string {
	switch {
	case errors.Is(err, reflection.ErrEmptyContent):
		return "Empty message"
	case errors.Is(err, reflection.ErrBadPayload):
		return "Bad payload"
	case errors.Is(err, reflection.ErrNotFound):
		return "Not found"
	case errors.Is(err, reflection.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, reflection.ErrNoDailyPrompt):
		return "No daily prompt"
	case errors.Is(err, reflection.ErrNoPromptsAvailable):
		return "No prompts available"
	case errors.Is(err, reflection.ErrUpdateFailed):
		return "Update failed"
	case errors.Is(err, reflection.ErrDeleteFailed):
		return "Delete failed"
	default:
		return "Server error"
	}
}
