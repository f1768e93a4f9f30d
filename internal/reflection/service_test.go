package reflection

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory Store safe for concurrent use.
type fakeStore struct {
	mu       sync.Mutex
	prompts  []Prompt
	dailies  map[string]*Daily // keyed by date
	messages map[int64]*Message
	nextID   int64
}

func newFakeStore(prompts ...Prompt) *fakeStore {
	return &fakeStore{
		prompts:  prompts,
		dailies:  map[string]*Daily{},
		messages: map[int64]*Message{},
		nextID:   1,
	}
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

func (f *fakeStore) FindDailyPromptByDate(ctx context.Context, date time.Time) (*Daily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.dailies[dateKey(date)]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) PickRandomActivePrompt(ctx context.Context) (*Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil, nil
	}
	p := f.prompts[0]
	return &p, nil
}

func (f *fakeStore) InsertDailyPromptIfAbsent(ctx context.Context, promptID int64, date time.Time) (*Daily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.dailies[dateKey(date)]; ok {
		cp := *d
		return &cp, nil
	}
	var prompt Prompt
	for _, p := range f.prompts {
		if p.ID == promptID {
			prompt = p
		}
	}
	d := &Daily{ID: f.nextID, ActiveOn: date, Prompt: prompt}
	f.nextID++
	f.dailies[dateKey(date)] = d
	cp := *d
	return &cp, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, dailyID int64, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Message{}
	for _, m := range f.messages {
		if m.DailyID == dailyID && len(out) < limit {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, dailyID int64, userID *int64, username, content string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &Message{ID: f.nextID, DailyID: dailyID, UserID: userID, Username: username, Content: content, CreatedAt: time.Now().UTC()}
	f.nextID++
	f.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (f *fakeStore) FindMessageByID(ctx context.Context, id int64) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateMessageContent(ctx context.Context, id int64, content string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, nil
	}
	m.Content = content
	cp := *m
	return &cp, nil
}

func (f *fakeStore) DeleteMessageByID(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return false, nil
	}
	delete(f.messages, id)
	return true, nil
}

type published struct {
	room  string
	event string
	data  any
}

// recorderPub captures broadcasts instead of fanning them out.
type recorderPub struct {
	mu     sync.Mutex
	frames []published
}

func (r *recorderPub) Publish(room, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, published{room: room, event: event, data: data})
}

func (r *recorderPub) last() (published, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return published{}, false
	}
	return r.frames[len(r.frames)-1], true
}

func userSession(id int64, name string) Session {
	return Session{UserID: &id, Username: name, Role: "user"}
}

func adminSession(id int64) Session {
	return Session{UserID: &id, Username: "admin", Role: "admin"}
}

func serviceWithDaily(t *testing.T) (*Service, *fakeStore, *recorderPub, *Daily) {
	t.Helper()
	store := newFakeStore(Prompt{ID: 1, Text: "What helped you today?"})
	d, err := store.InsertDailyPromptIfAbsent(context.Background(), 1, Today())
	require.NoError(t, err)
	pub := &recorderPub{}
	return NewService(store, pub, zap.NewNop().Sugar()), store, pub, d
}

func TestCreateRequiresAuthentication(t *testing.T) {
	svc, _, pub, _ := serviceWithDaily(t)

	_, err := svc.Create(context.Background(), Session{}, "hello")
	assert.ErrorIs(t, err, ErrForbidden)
	_, any := pub.last()
	assert.False(t, any)
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)

	_, err := svc.Create(context.Background(), userSession(7, "sam"), "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestCreateRejectsOversizedContent(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)

	_, err := svc.Create(context.Background(), userSession(7, "sam"), strings.Repeat("a", 2001))
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestCreateAcceptsContentAtLimit(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)

	m, err := svc.Create(context.Background(), userSession(7, "sam"), strings.Repeat("a", 2000))
	require.NoError(t, err)
	assert.Len(t, m.Content, 2000)
}

func TestCreateWithoutDailyPrompt(t *testing.T) {
	store := newFakeStore(Prompt{ID: 1, Text: "p"})
	svc := NewService(store, &recorderPub{}, zap.NewNop().Sugar())

	_, err := svc.Create(context.Background(), userSession(7, "sam"), "hello")
	assert.ErrorIs(t, err, ErrNoDailyPrompt)
}

func TestCreateBroadcastsToDailyRoom(t *testing.T) {
	svc, _, pub, d := serviceWithDaily(t)

	m, err := svc.Create(context.Background(), userSession(7, "sam"), "  hello world  ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", m.Content)
	assert.Equal(t, "sam", m.Username)

	frame, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, RoomKey(d.ID), frame.room)
	assert.Equal(t, EventMessageNew, frame.event)
	assert.Equal(t, m, frame.data)
}

func TestCreateFallsBackToAnonymousName(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)

	id := int64(9)
	m, err := svc.Create(context.Background(), Session{UserID: &id}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", m.Username)
}

func TestUpdateByOwner(t *testing.T) {
	svc, _, pub, d := serviceWithDaily(t)
	sess := userSession(7, "sam")
	m, err := svc.Create(context.Background(), sess, "before")
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), sess, m.ID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)

	frame, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, RoomKey(d.ID), frame.room)
	assert.Equal(t, EventMessageUpdated, frame.event)
}

func TestUpdateByStrangerIsForbidden(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)
	m, err := svc.Create(context.Background(), userSession(7, "sam"), "mine")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), userSession(8, "alex"), m.ID, "theirs")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateByAdmin(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)
	m, err := svc.Create(context.Background(), userSession(7, "sam"), "mine")
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), adminSession(1), m.ID, "moderated")
	require.NoError(t, err)
	assert.Equal(t, "moderated", updated.Content)
}

func TestUpdateMissingMessage(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)

	_, err := svc.Update(context.Background(), userSession(7, "sam"), 404, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRejectsBadPayload(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)

	_, err := svc.Update(context.Background(), userSession(7, "sam"), 0, "x")
	assert.ErrorIs(t, err, ErrBadPayload)

	_, err = svc.Update(context.Background(), userSession(7, "sam"), 1, "  ")
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestAnonymousMessageIsAdminOnly(t *testing.T) {
	svc, store, _, d := serviceWithDaily(t)
	m, err := store.InsertMessage(context.Background(), d.ID, nil, "Anonymous", "ghost")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), userSession(7, "sam"), m.ID, "claimed")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(context.Background(), adminSession(1), m.ID, "cleaned")
	assert.NoError(t, err)
}

func TestDeleteByOwnerBroadcastsID(t *testing.T) {
	svc, _, pub, d := serviceWithDaily(t)
	sess := userSession(7, "sam")
	m, err := svc.Create(context.Background(), sess, "bye")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), sess, m.ID))

	frame, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, RoomKey(d.ID), frame.room)
	assert.Equal(t, EventMessageDeleted, frame.event)
	assert.Equal(t, map[string]int64{"id": m.ID}, frame.data)
}

func TestDeleteTwiceIsNotFound(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)
	sess := userSession(7, "sam")
	m, err := svc.Create(context.Background(), sess, "once")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), sess, m.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), sess, m.ID), ErrNotFound)
}

func TestDeleteByStrangerIsForbidden(t *testing.T) {
	svc, _, _, _ := serviceWithDaily(t)
	m, err := svc.Create(context.Background(), userSession(7, "sam"), "mine")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), userSession(8, "alex"), m.ID), ErrForbidden)
}

func TestListTodayWithoutPromptIsEmpty(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recorderPub{}, zap.NewNop().Sugar())

	msgs, err := svc.ListToday(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
