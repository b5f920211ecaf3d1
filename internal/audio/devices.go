package audio

import "context"

// Segment is one finished utterance captured from a microphone source.
type Segment struct {
	Data []byte
	MIME string
}

// Clip is one synthesized reply scheduled for playback.
type Clip struct {
	TurnID string
	MIME   string
	Data   []byte
}

// CaptureDevice produces finished speech segments while armed. Segments
// arriving while the device is disarmed are dropped.
type CaptureDevice interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	// Discard disarms and throws away any buffered, not yet delivered audio.
	Discard()
	Segments() <-chan Segment
	Close() error
}

// PlaybackDevice renders one clip at a time. Play blocks until the clip has
// finished rendering, the context is cancelled, or Stop is called.
type PlaybackDevice interface {
	Play(ctx context.Context, clip Clip) error
	Stop()
	Close() error
}
