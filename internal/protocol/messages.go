package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl      MessageType = "client_control"
	TypeClientAudioSegment MessageType = "client_audio_segment"
	TypeTurnAppended       MessageType = "turn_appended"
	TypeStatusChanged      MessageType = "status_changed"
	TypeTranscriptReady    MessageType = "transcript_ready"
	TypeCaptureStart       MessageType = "capture_start"
	TypeCaptureStop        MessageType = "capture_stop"
	TypePlayAudio          MessageType = "play_audio"
	TypeErrorEvent         MessageType = "error_event"
)

// Client control actions.
const (
	ActionTypedText        = "typed_text"
	ActionSetAutoMode      = "set_auto_mode"
	ActionStartCapture     = "start_capture"
	ActionStop             = "stop"
	ActionPlaybackFinished = "playback_finished"
	ActionPlaybackError    = "playback_error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientControl carries typed input and session controls from the client.
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Text      string      `json:"text,omitempty"`
	Enabled   *bool       `json:"enabled,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// ClientAudioSegment is one finalized microphone segment from the client.
type ClientAudioSegment struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	AudioBase64 string      `json:"audio_base64"`
	MIMEType    string      `json:"mime_type"`
}

// TurnAppended announces a turn added to the conversation.
type TurnAppended struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Speaker   string      `json:"speaker"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// StatusChanged announces an orchestrator phase transition.
type StatusChanged struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Phase     string      `json:"phase"`
}

// TranscriptReady returns a manual-mode transcription for the input box.
type TranscriptReady struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// CaptureStart tells the client to begin recording a segment.
type CaptureStart struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// CaptureStop tells the client to finalize the current segment.
type CaptureStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Discard   bool        `json:"discard,omitempty"`
}

// PlayAudio delivers synthesized reply audio for playback.
type PlayAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	TurnID      string      `json:"turn_id"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

// ErrorEvent surfaces a classified failure to the client.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Class     string      `json:"class"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	case TypeClientAudioSegment:
		var msg ClientAudioSegment
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.AudioBase64 == "" {
			return nil, errors.New("invalid client_audio_segment")
		}
		if msg.MIMEType == "" {
			msg.MIMEType = "audio/webm"
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
