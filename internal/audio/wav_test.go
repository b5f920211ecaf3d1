package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVPCM16LE(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	data := EncodeWAVPCM16LE(pcm, 16000, 1)

	if len(data) != wavHeaderSize+len(pcm) {
		t.Fatalf("encoded length = %d, want %d", len(data), wavHeaderSize+len(pcm))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE markers: % x", data[:12])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data chunk size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(data[wavHeaderSize:], pcm) {
		t.Fatalf("payload mismatch")
	}
}

func TestEncodeWAVPCM16LEDefaults(t *testing.T) {
	data := EncodeWAVPCM16LE([]byte{0, 0}, 0, 0)
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Fatalf("default sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Fatalf("default channels = %d, want 1", got)
	}
	// byte rate = sampleRate * channels * 2
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 32000 {
		t.Fatalf("byte rate = %d, want 32000", got)
	}
}
