package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/mpetrucci/pitchcoach/internal/protocol"
)

// ErrPlaybackStopped reports that playback was cut short on request.
var ErrPlaybackStopped = errors.New("playback stopped")

// WSCapture bridges microphone capture over a client websocket. Arm and
// Disarm emit control frames the browser acts on; the connection loop feeds
// received audio segments back in through Offer.
type WSCapture struct {
	outbound chan<- any
	segments chan Segment

	mu    sync.Mutex
	armed bool
}

func NewWSCapture(outbound chan<- any) *WSCapture {
	return &WSCapture{
		outbound: outbound,
		segments: make(chan Segment, 4),
	}
}

func (c *WSCapture) Arm(ctx context.Context) error {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()
	return c.send(ctx, protocol.CaptureStart{Type: protocol.TypeCaptureStart})
}

func (c *WSCapture) Disarm(ctx context.Context) error {
	c.mu.Lock()
	c.armed = false
	c.mu.Unlock()
	return c.send(ctx, protocol.CaptureStop{Type: protocol.TypeCaptureStop})
}

func (c *WSCapture) Discard() {
	c.mu.Lock()
	c.armed = false
	c.mu.Unlock()
	select {
	case c.outbound <- protocol.CaptureStop{Type: protocol.TypeCaptureStop, Discard: true}:
	default:
	}
	for {
		select {
		case <-c.segments:
		default:
			return
		}
	}
}

// Offer hands a decoded client audio segment to the device. Segments offered
// while disarmed, or when the buffer is full, are dropped.
func (c *WSCapture) Offer(seg Segment) bool {
	c.mu.Lock()
	armed := c.armed
	c.mu.Unlock()
	if !armed {
		return false
	}
	select {
	case c.segments <- seg:
		return true
	default:
		return false
	}
}

func (c *WSCapture) Segments() <-chan Segment { return c.segments }

func (c *WSCapture) Close() error { return nil }

func (c *WSCapture) send(ctx context.Context, msg any) error {
	select {
	case c.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WSPlayback renders clips by shipping them to the client and waiting for
// the playback_finished control frame.
type WSPlayback struct {
	outbound chan<- any

	mu      sync.Mutex
	current chan error
}

func NewWSPlayback(outbound chan<- any) *WSPlayback {
	return &WSPlayback{outbound: outbound}
}

func (p *WSPlayback) Play(ctx context.Context, clip Clip) error {
	done := make(chan error, 1)
	p.mu.Lock()
	p.current = done
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
	}()

	msg := protocol.PlayAudio{
		Type:        protocol.TypePlayAudio,
		TurnID:      clip.TurnID,
		Format:      clip.MIME,
		AudioBase64: base64.StdEncoding.EncodeToString(clip.Data),
	}
	select {
	case p.outbound <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyFinished resolves the in-flight Play. The connection loop calls it
// when the client reports playback completion or failure.
func (p *WSPlayback) NotifyFinished(err error) {
	p.mu.Lock()
	done := p.current
	p.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case done <- err:
	default:
	}
}

func (p *WSPlayback) Stop() {
	p.NotifyFinished(ErrPlaybackStopped)
}

func (p *WSPlayback) Close() error { return nil }
