package models

import "time"

// SessionStatusActive is the only status assigned by this service.
const SessionStatusActive = "active"

// Session groups a sequence of practice-conversation turns with one persona.
// The display name is derived from creation-order rank and never stored.
type Session struct {
	ID          string    `json:"session_id"`
	StudentID   int64     `json:"student_id"`
	PersonaType string    `json:"persona_type"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
}

// SessionSummary is a sidebar row: one session joined with its message count
// and the derived display name.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	SessionName  string `json:"session_name"`
	CreatedAt    string `json:"created_at"`
	MessageCount int64  `json:"message_count"`
}
