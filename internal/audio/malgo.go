package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const (
	localSampleRate  = 16000
	localChannels    = 1
	localPeriodSize  = 480
	localDrainPollMS = 20
)

// LocalDevices owns the host audio context and the capture and playback
// devices built on it.
type LocalDevices struct {
	ctx      *malgo.AllocatedContext
	Capture  *LocalCapture
	Playback *LocalPlayback
}

// NewLocalDevices initializes host microphone and speaker devices at 16kHz
// PCM16 mono. minSegBytes bounds how short an emitted utterance may be.
func NewLocalDevices(minSegBytes int) (*LocalDevices, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &LocalDevices{ctx: actx}

	d.Capture, err = newLocalCapture(actx, minSegBytes)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Playback, err = newLocalPlayback(actx)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *LocalDevices) Close() error {
	if d.Capture != nil {
		d.Capture.Close()
	}
	if d.Playback != nil {
		d.Playback.Close()
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}

// LocalCapture drives the host microphone and emits endpointed utterances
// as WAV segments.
type LocalCapture struct {
	device   *malgo.Device
	segments chan Segment

	mu    sync.Mutex
	armed bool
	ep    *Endpointer
}

func newLocalCapture(actx *malgo.AllocatedContext, minSegBytes int) (*LocalCapture, error) {
	c := &LocalCapture{
		segments: make(chan Segment, 4),
		ep:       NewEndpointer(0, 0, minSegBytes),
	}

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * localChannels

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = localSampleRate
	cfg.Capture.Format = format
	cfg.Capture.Channels = localChannels
	cfg.Alsa.NoMMap = 1
	cfg.PerformanceProfile = malgo.LowLatency
	cfg.PeriodSizeInFrames = localPeriodSize
	cfg.Periods = 3

	device, err := malgo.InitDevice(actx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.onFrame(pInput[:n])
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	c.device = device
	return c, nil
}

func (c *LocalCapture) onFrame(frame []byte) {
	c.mu.Lock()
	if !c.armed {
		c.mu.Unlock()
		return
	}
	seg := c.ep.Feed(frame)
	c.mu.Unlock()
	if seg == nil {
		return
	}

	data := EncodeWAVPCM16LE(seg, localSampleRate, 1)
	select {
	case c.segments <- Segment{Data: data, MIME: "audio/wav"}:
	default:
	}
}

func (c *LocalCapture) Arm(_ context.Context) error {
	c.mu.Lock()
	c.armed = true
	c.ep.Reset()
	c.mu.Unlock()
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

func (c *LocalCapture) Disarm(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return nil
	}
	c.armed = false
	// A trailing utterance still counts if it clears the length floor.
	if seg := c.ep.Flush(); seg != nil {
		data := EncodeWAVPCM16LE(seg, localSampleRate, 1)
		select {
		case c.segments <- Segment{Data: data, MIME: "audio/wav"}:
		default:
		}
	}
	return nil
}

func (c *LocalCapture) Discard() {
	c.mu.Lock()
	c.armed = false
	c.ep.Reset()
	c.mu.Unlock()
	for {
		select {
		case <-c.segments:
		default:
			return
		}
	}
}

func (c *LocalCapture) Segments() <-chan Segment { return c.segments }

func (c *LocalCapture) Close() error {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}

// LocalPlayback renders raw PCM16LE mono clips on the host speakers.
type LocalPlayback struct {
	device *malgo.Device

	mu      sync.Mutex
	pending []byte
	stopped bool
}

func newLocalPlayback(actx *malgo.AllocatedContext) (*LocalPlayback, error) {
	p := &LocalPlayback{}

	format := malgo.FormatS16

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = localSampleRate
	cfg.Playback.Format = format
	cfg.Playback.Channels = localChannels
	cfg.Alsa.NoMMap = 1
	cfg.PeriodSizeInFrames = localSampleRate / 10
	cfg.Periods = 4

	device, err := malgo.InitDevice(actx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			p.fill(pOutput)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	p.device = device
	return p, nil
}

func (p *LocalPlayback) fill(out []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(out, p.pending)
	p.pending = p.pending[n:]
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

// Play queues the clip and blocks until the device has drained it. Only raw
// PCM payloads are renderable locally.
func (p *LocalPlayback) Play(ctx context.Context, clip Clip) error {
	p.mu.Lock()
	p.pending = append([]byte(nil), clip.Data...)
	p.stopped = false
	p.mu.Unlock()

	if !p.device.IsStarted() {
		if err := p.device.Start(); err != nil {
			return fmt.Errorf("start playback device: %w", err)
		}
	}

	ticker := time.NewTicker(localDrainPollMS * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case <-ticker.C:
			p.mu.Lock()
			remaining := len(p.pending)
			stopped := p.stopped
			p.mu.Unlock()
			if stopped {
				return ErrPlaybackStopped
			}
			if remaining == 0 {
				return nil
			}
		}
	}
}

func (p *LocalPlayback) Stop() {
	p.mu.Lock()
	p.pending = nil
	p.stopped = true
	p.mu.Unlock()
}

func (p *LocalPlayback) Close() error {
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	return nil
}
