package transcript

import (
	"context"
	"time"
)

// Entry archives a single spoken or typed turn. The archive is write-mostly:
// completions never read it back, it exists for post-session review.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	PersonaID string    `json:"persona_id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	SpeakerRep     = "rep"
	SpeakerPersona = "persona"
)

// Store persists rehearsal transcripts.
type Store interface {
	Append(ctx context.Context, e Entry) error
	SessionEntries(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Close() error
}
