package session

import "time"

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	PersonaID string `json:"persona_id"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	Status          Status    `json:"status"`
	PersonaID       string    `json:"persona_id"`
	PersonaName     string    `json:"persona_name"`
	AutoMode        bool      `json:"auto_mode"`
	Greeting        string    `json:"greeting"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
