package reflection

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxContentLen = 2000
	historyLimit  = 200
	anonymousName = "Anonymous"
)

// Event names broadcast to a daily room.
const (
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"
)

// Publisher fans an event out to every session joined to a room. The websocket
// hub implements it; tests inject a recorder.
type Publisher interface {
	Publish(room string, event string, data any)
}

// Service applies create/update/delete operations to the daily message log and
// broadcasts the result to the affected room. Every operation follows the same
// shape: validate, resolve room, persist, fan out.
type Service struct {
	store  Store
	pub    Publisher
	logger *zap.SugaredLogger
}

func NewService(store Store, pub Publisher, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, pub: pub, logger: logger}
}

// canMutate is the authorization gate: the author or an admin, nobody else.
// Messages with no author (anonymous rows) are admin-only.
func canMutate(s Session, m *Message) bool {
	if s.Role == "admin" {
		return true
	}
	if m.UserID == nil || s.UserID == nil {
		return false
	}
	return *m.UserID == *s.UserID
}

// ListToday returns up to 200 messages for today's room, oldest first. A day
// with no prompt yet yields an empty list; reads never create the prompt.
func (s *Service) ListToday(ctx context.Context) ([]Message, error) {
	d, err := s.store.FindDailyPromptByDate(ctx, Today())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return []Message{}, nil
	}
	return s.store.ListMessages(ctx, d.ID, historyLimit)
}

// Create persists a new message in today's room and broadcasts message:new.
// The daily prompt must already exist; creation on the write path would race
// the resolver, so a missing prompt is surfaced instead.
func (s *Service) Create(ctx context.Context, sess Session, content string) (*Message, error) {
	if !sess.Authenticated() {
		return nil, ErrForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, ErrBadPayload
	}

	d, err := s.store.FindDailyPromptByDate(ctx, Today())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNoDailyPrompt
	}

	username := sess.Username
	if username == "" {
		username = anonymousName
	}

	m, err := s.store.InsertMessage(ctx, d.ID, sess.UserID, username, content)
	if err != nil {
		return nil, err
	}

	s.pub.Publish(RoomKey(d.ID), EventMessageNew, m)
	return m, nil
}

// Update rewrites a message's content and broadcasts message:updated with the
// full row. Creation time is preserved.
func (s *Service) Update(ctx context.Context, sess Session, id int64, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if id <= 0 || content == "" {
		return nil, ErrBadPayload
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, ErrBadPayload
	}

	m, err := s.store.FindMessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	if !canMutate(sess, m) {
		return nil, ErrForbidden
	}

	updated, err := s.store.UpdateMessageContent(ctx, id, content)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Row vanished between the lookup and the write; a retryable server
		// fault, not Forbidden or NotFound.
		return nil, ErrUpdateFailed
	}

	s.pub.Publish(RoomKey(updated.DailyID), EventMessageUpdated, updated)
	return updated, nil
}

// Delete removes a message and broadcasts message:deleted with just the id.
func (s *Service) Delete(ctx context.Context, sess Session, id int64) error {
	if id <= 0 {
		return ErrBadPayload
	}

	m, err := s.store.FindMessageByID(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotFound
	}
	if !canMutate(sess, m) {
		return ErrForbidden
	}

	deleted, err := s.store.DeleteMessageByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDeleteFailed
	}

	s.pub.Publish(RoomKey(m.DailyID), EventMessageDeleted, map[string]int64{"id": id})
	return nil
}
