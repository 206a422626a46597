package models

import "time"

// SenderType identifies which side of the conversation produced a message.

type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderAssistant SenderType = "assistant"
)

// Valid reports whether the sender type is one this service stores.
func (s SenderType) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

type Message struct {
	ID             int64      `json:"id"`
	SessionID      string     `json:"session_id"`
	SenderType     SenderType `json:"sender_type"`
	Content        string     `json:"content"`
	SequenceNumber int64      `json:"sequence_number"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HistoryEntry is one turn of reconstructed conversation history.
// Timestamp is second precision, fixed width.
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// TimestampLayout is the wire format for history and summary timestamps.
const TimestampLayout = "2006-01-02 15:04:05"
