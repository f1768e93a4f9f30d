package reflection

import "errors"

// Failure modes surfaced by the resolver and the message service. Handlers map
// these to HTTP statuses and socket acks; anything else is a server error.
var (
	ErrBadPayload         = errors.New("bad payload")
	ErrEmptyContent       = errors.New("empty message")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not your message")
	ErrNoDailyPrompt      = errors.New("no daily prompt")
	ErrNoPromptsAvailable = errors.New("no active prompts available")
	ErrUpdateFailed       = errors.New("update failed")
	ErrDeleteFailed       = errors.New("delete failed")
)
