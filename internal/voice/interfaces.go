package voice

import (
	"context"
	"time"

	"github.com/mpetrucci/pitchcoach/internal/audio"
	"github.com/mpetrucci/pitchcoach/internal/persona"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerRep     Speaker = "rep"
	SpeakerPersona Speaker = "persona"
)

// Turn is one utterance in a rehearsal conversation.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Greeting  bool      `json:"greeting,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcriber converts a finished speech segment to text.
type Transcriber interface {
	Transcribe(ctx context.Context, segment audio.Segment) (string, error)
}

// CompletionRequest asks for the persona's next reply given the
// conversation so far. Turns are chronological and exclude the scripted
// greeting.
type CompletionRequest struct {
	SystemPrompt string
	Turns        []Turn
}

// Completer produces the persona's next reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// SpeechRequest asks for audio for one reply.
type SpeechRequest struct {
	Text   string
	Voice  persona.VoiceProfile
	Format string
}

// Synthesizer renders reply text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// Provider bundles the three speech-pipeline capabilities.
type Provider interface {
	Transcriber
	Completer
	Synthesizer
}
