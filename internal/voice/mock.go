package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/mpetrucci/pitchcoach/internal/audio"
)

// MockProvider is a local fallback provider used when no API key is
// configured. Replies are canned but deterministic so the rehearsal loop
// can be exercised end to end.
type MockProvider struct {
	mu    sync.Mutex
	calls int
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Transcribe(_ context.Context, segment audio.Segment) (string, error) {
	if len(segment.Data) == 0 {
		return "", nil
	}
	return "simulated rep utterance", nil
}

func (p *MockProvider) Complete(_ context.Context, req CompletionRequest) (string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	if len(req.Turns) == 0 {
		return "Could you start by walking me through your key data?", nil
	}
	return fmt.Sprintf("Interesting. Tell me more about that. (reply %d)", n), nil
}

func (p *MockProvider) Synthesize(_ context.Context, _ SpeechRequest) ([]byte, error) {
	// A short silent PCM clip keeps playback paths exercised offline.
	return make([]byte, 3200), nil
}
