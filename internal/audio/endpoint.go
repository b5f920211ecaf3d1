package audio

import (
	"encoding/binary"
	"math"
)

// Endpointer turns a continuous PCM16LE mono stream into discrete speech
// segments using a simple energy gate: a segment opens on the first frame
// above the threshold and closes after enough consecutive quiet frames.
type Endpointer struct {
	threshold   float64
	hangFrames  int
	minSegBytes int

	buf      []byte
	inSpeech bool
	quiet    int
}

// NewEndpointer builds an energy endpointer. threshold is normalized RMS in
// [0,1], hangFrames is how many consecutive quiet frames end a segment, and
// minSegBytes drops segments too short to transcribe.
func NewEndpointer(threshold float64, hangFrames, minSegBytes int) *Endpointer {
	if threshold <= 0 {
		threshold = 0.015
	}
	if hangFrames <= 0 {
		hangFrames = 25
	}
	return &Endpointer{
		threshold:   threshold,
		hangFrames:  hangFrames,
		minSegBytes: minSegBytes,
	}
}

// Feed consumes one capture frame. It returns a finished segment of raw PCM
// when an utterance ends, or nil.
func (e *Endpointer) Feed(frame []byte) []byte {
	loud := frameRMS(frame) >= e.threshold

	if !e.inSpeech {
		if !loud {
			return nil
		}
		e.inSpeech = true
		e.quiet = 0
	}

	e.buf = append(e.buf, frame...)
	if loud {
		e.quiet = 0
		return nil
	}

	e.quiet++
	if e.quiet < e.hangFrames {
		return nil
	}
	return e.flush()
}

// Flush ends any open segment immediately, returning it if long enough.
func (e *Endpointer) Flush() []byte {
	if !e.inSpeech {
		return nil
	}
	return e.flush()
}

// Reset drops all buffered audio and closes any open segment.
func (e *Endpointer) Reset() {
	e.buf = nil
	e.inSpeech = false
	e.quiet = 0
}

func (e *Endpointer) flush() []byte {
	seg := e.buf
	e.Reset()
	if len(seg) < e.minSegBytes {
		return nil
	}
	return seg
}

func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(frame[i*2:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
