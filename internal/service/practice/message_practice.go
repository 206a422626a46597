package practice

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"counselgo/internal/models"
	"counselgo/internal/storage"
)

// AppendMessage stores one conversation turn and assigns it the next
// sequence number for the session, starting at 1. A per-session lock
// serializes the read-max-then-insert pair so two concurrent appends can
// never observe the same maximum; the UNIQUE(session_id, sequence_number)
// index backstops writers outside this process.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, senderType models.SenderType, content string) (*models.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, invalidf("session_id is required")
	}
	if !senderType.Valid() {
		return nil, invalidf("invalid sender type: %s", senderType)
	}
	// Content is stored verbatim; only all-whitespace input is rejected.
	if strings.TrimSpace(content) == "" {
		return nil, invalidf("content cannot be empty")
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	msg := &models.Message{
		SessionID:  sessionID,
		SenderType: senderType,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM sessions WHERE session_id = ?)`, sessionID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("verify session: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM messages WHERE session_id = ?`,
			sessionID,
		).Scan(&msg.SequenceNumber); err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, sender_type, content, sequence_number, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			msg.SessionID, msg.SenderType, msg.Content, msg.SequenceNumber, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("message id: %w", err)
		}
		msg.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetHistory reconstructs a session's conversation ordered by sequence
// number. A session with no messages yields an empty slice, not an error.
func (s *Service) GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, invalidf("session_id is required")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sender_type, content, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY sequence_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	history := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var (
			role      string
			content   string
			createdAt time.Time
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		history = append(history, models.HistoryEntry{
			Role:      role,
			Content:   content,
			Timestamp: createdAt.Format(models.TimestampLayout),
		})
	}
	return history, rows.Err()
}

// GetSessionMessages returns the stored message rows for a session, oldest
// first. Used by the persona generator to rebuild model context.
func (s *Service) GetSessionMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, invalidf("session_id is required")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, sender_type, content, sequence_number, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY sequence_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderType, &m.Content, &m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
