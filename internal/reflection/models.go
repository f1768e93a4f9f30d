package reflection

import (
	"fmt"
	"time"
)

// Prompt is one reusable text from the active pool daily prompts are drawn from.
type Prompt struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Daily binds one prompt to one calendar date. Resolved rows carry the joined
// prompt so callers never need a second read.
type Daily struct {
	ID       int64     `json:"daily_id"`
	ActiveOn time.Time `json:"active_on"`
	Prompt   Prompt    `json:"prompt"`
}

// Message is one chat message in a daily room. UserID is nil for anonymous rows.
type Message struct {
	ID        int64     `json:"id"`
	DailyID   int64     `json:"-"`
	UserID    *int64    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the identity of one connection or request. A zero UserID pointer
// means the session is unauthenticated: it may read and receive broadcasts but
// never mutate.
type Session struct {
	UserID   *int64
	Username string
	Role     string
}

func (s Session) Authenticated() bool { return s.UserID != nil }

// RoomKey derives the broadcast group name from the daily prompt id, not the
// date, so a prompt rotation lands rejoining sessions in a fresh room.
func RoomKey(dailyID int64) string {
	return fmt.Sprintf("daily_%d", dailyID)
}
