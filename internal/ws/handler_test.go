package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mycm.app/server/internal/auth"
	"mycm.app/server/internal/reflection"
)

// memStore is a minimal reflection.Store for exercising the dispatch path.
type memStore struct {
	mu       sync.Mutex
	prompt   reflection.Prompt
	daily    *reflection.Daily
	messages map[int64]*reflection.Message
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		prompt:   reflection.Prompt{ID: 1, Text: "What helped you today?"},
		messages: map[int64]*reflection.Message{},
		nextID:   1,
	}
}

func (s *memStore) FindDailyPromptByDate(ctx context.Context, date time.Time) (*reflection.Daily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily == nil || !s.daily.ActiveOn.Equal(date) {
		return nil, nil
	}
	cp := *s.daily
	return &cp, nil
}

func (s *memStore) PickRandomActivePrompt(ctx context.Context) (*reflection.Prompt, error) {
	p := s.prompt
	return &p, nil
}

func (s *memStore) InsertDailyPromptIfAbsent(ctx context.Context, promptID int64, date time.Time) (*reflection.Daily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily == nil {
		s.daily = &reflection.Daily{ID: s.nextID, ActiveOn: date, Prompt: s.prompt}
		s.nextID++
	}
	cp := *s.daily
	return &cp, nil
}

func (s *memStore) ListMessages(ctx context.Context, dailyID int64, limit int) ([]reflection.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []reflection.Message{}
	for _, m := range s.messages {
		if m.DailyID == dailyID && len(out) < limit {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) InsertMessage(ctx context.Context, dailyID int64, userID *int64, username, content string) (*reflection.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &reflection.Message{ID: s.nextID, DailyID: dailyID, UserID: userID, Username: username, Content: content, CreatedAt: time.Now().UTC()}
	s.nextID++
	s.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *memStore) FindMessageByID(ctx context.Context, id int64) (*reflection.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) UpdateMessageContent(ctx context.Context, id int64, content string) (*reflection.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	m.Content = content
	cp := *m
	return &cp, nil
}

func (s *memStore) DeleteMessageByID(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return false, nil
	}
	delete(s.messages, id)
	return true, nil
}

func newTestServer(t *testing.T) (*Server, *Hub) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	hub := NewHub(logger)
	store := newMemStore()
	resolver := reflection.NewResolver(store, nil, logger)
	svc := reflection.NewService(store, hub, logger)
	return NewServer(hub, resolver, svc, logger, "test-secret"), hub
}

func inbound(event string, data any) inboundFrame {
	raw, _ := json.Marshal(data)
	return inboundFrame{Event: event, Data: raw}
}

func ackData(t *testing.T, c *Client, wantEvent string) map[string]any {
	t.Helper()
	f := recvFrame(t, c)
	require.Equal(t, wantEvent, f.Event)
	data, ok := f.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func TestJoinTodayAcksWithDailyID(t *testing.T) {
	srv, hub := newTestServer(t)
	c := testClient()
	c.hub = hub

	srv.dispatch(c, inboundFrame{Event: "join-today"})

	data := ackData(t, c, "join-today")
	assert.Equal(t, true, data["ok"])
	assert.EqualValues(t, 1, data["dailyId"])
	assert.Equal(t, 1, hub.RoomSize(reflection.RoomKey(1)))
}

func TestAnonymousCreateIsForbidden(t *testing.T) {
	srv, hub := newTestServer(t)
	c := testClient()
	c.hub = hub

	srv.dispatch(c, inboundFrame{Event: "join-today"})
	<-c.send // drain the join ack

	srv.dispatch(c, inbound("message-create", map[string]any{"content": "hi"}))

	data := ackData(t, c, "message-create")
	assert.Equal(t, false, data["ok"])
	assert.Equal(t, "Forbidden", data["error"])
}

func TestCreateBroadcastsToJoinedViewers(t *testing.T) {
	srv, hub := newTestServer(t)

	viewer := testClient()
	viewer.hub = hub
	srv.dispatch(viewer, inboundFrame{Event: "join-today"})
	<-viewer.send

	uid := int64(7)
	author := testClient()
	author.hub = hub
	author.sess = reflection.Session{UserID: &uid, Username: "sam", Role: "user"}
	srv.dispatch(author, inboundFrame{Event: "join-today"})
	<-author.send

	srv.dispatch(author, inbound("message-create", map[string]any{"content": "hello room"}))

	// The room broadcast goes out before the ack, so the author sees both.
	f := recvFrame(t, author)
	assert.Equal(t, reflection.EventMessageNew, f.Event)
	data := ackData(t, author, "message-create")
	assert.Equal(t, true, data["ok"])

	f = recvFrame(t, viewer)
	assert.Equal(t, reflection.EventMessageNew, f.Event)
}

func TestDeleteAcksWithID(t *testing.T) {
	srv, hub := newTestServer(t)

	uid := int64(7)
	c := testClient()
	c.hub = hub
	c.sess = reflection.Session{UserID: &uid, Username: "sam", Role: "user"}
	srv.dispatch(c, inboundFrame{Event: "join-today"})
	<-c.send

	srv.dispatch(c, inbound("message-create", map[string]any{"content": "bye"}))
	<-c.send // room broadcast back to the author
	<-c.send // create ack

	srv.dispatch(c, inbound("message-delete", map[string]any{"id": 2}))
	<-c.send // message:deleted broadcast

	data := ackData(t, c, "message-delete")
	assert.Equal(t, true, data["ok"])
	assert.EqualValues(t, 2, data["id"])
}

func TestUnknownEventIsRejected(t *testing.T) {
	srv, hub := newTestServer(t)
	c := testClient()
	c.hub = hub

	srv.dispatch(c, inboundFrame{Event: "bogus"})

	data := ackData(t, c, "bogus")
	assert.Equal(t, false, data["ok"])
	assert.Equal(t, "Unknown event", data["error"])
}

func TestSessionFromRequestQueryToken(t *testing.T) {
	srv, _ := newTestServer(t)

	token, err := auth.GenerateToken("test-secret", 42, "sam", "user")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ws/reflections?token="+token, nil)

	sess := srv.sessionFromRequest(c)
	require.NotNil(t, sess.UserID)
	assert.EqualValues(t, 42, *sess.UserID)
	assert.Equal(t, "sam", sess.Username)
}

func TestSessionFromRequestBadTokenIsAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ws/reflections", nil)
	c.Request.Header.Set("Authorization", "Bearer garbage")

	sess := srv.sessionFromRequest(c)
	assert.Nil(t, sess.UserID)
	assert.False(t, sess.Authenticated())
}
