package practice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"counselgo/internal/models"
	"counselgo/internal/storage"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sessionRank is the single rank computation behind every display name:
// 1 + the number of the student's sessions that come strictly earlier in
// (created_at, session_id) order. The earliest session ranks 1. Creation,
// listing, and single-session lookup all go through this ordering so the
// derived names can never disagree.
func sessionRank(ctx context.Context, q querier, studentID int64, createdAt time.Time, sessionID string) (int64, error) {
	var rank int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) + 1 FROM sessions
		 WHERE student_id = ?
		   AND (created_at < ? OR (created_at = ? AND session_id < ?))`,
		studentID, createdAt, createdAt, sessionID,
	).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("rank session: %w", err)
	}
	return rank, nil
}

func sessionDisplayName(rank int64) string {
	return fmt.Sprintf("Session-%d", rank)
}

// CreateSession opens a new conversation container for the student and
// returns it together with its derived display name. The name is not stored;
// it is recomputed from creation-order rank wherever it is needed.
func (s *Service) CreateSession(ctx context.Context, studentID int64, personaType string) (*models.Session, string, error) {
	if studentID <= 0 {
		return nil, "", invalidf("student_id is required")
	}
	personaType = strings.TrimSpace(personaType)
	if personaType == "" {
		return nil, "", invalidf("persona_type is required")
	}

	// Serialize creation per student so two concurrent creates cannot both
	// compute the same rank before either insert commits.
	lock := s.studentLock(studentID)
	lock.Lock()
	defer lock.Unlock()

	session := &models.Session{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		PersonaType: personaType,
		CreatedAt:   time.Now().UTC(),
		Status:      models.SessionStatusActive,
	}

	var name string
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM students WHERE student_id = ?)`, studentID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("verify student: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, student_id, persona_type, created_at, status)
			 VALUES (?, ?, ?, ?, ?)`,
			session.ID, session.StudentID, session.PersonaType, session.CreatedAt, session.Status,
		); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		rank, err := sessionRank(ctx, tx, studentID, session.CreatedAt, session.ID)
		if err != nil {
			return err
		}
		name = sessionDisplayName(rank)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return session, name, nil
}

// GetSession fetches one session row. Returns sql.ErrNoRows when unknown.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, invalidf("session_id is required")
	}
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, student_id, persona_type, created_at, status FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&session.ID, &session.StudentID, &session.PersonaType, &session.CreatedAt, &session.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// SessionExists reports whether a session id is known. No side effects.
func (s *Service) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, invalidf("session_id is required")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE session_id = ?)`, sessionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return exists, nil
}

// GetStudentSessions lists the student's sessions with message counts,
// newest first. Sessions with no messages still appear with count 0. An
// unknown email yields an empty list.
func (s *Service) GetStudentSessions(ctx context.Context, email string) ([]models.SessionSummary, error) {
	student, err := s.GetStudentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.SessionSummary{}, nil
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.session_id, s.created_at, COUNT(m.message_id)
		 FROM sessions s
		 LEFT JOIN messages m ON m.session_id = s.session_id
		 WHERE s.student_id = ?
		 GROUP BY s.session_id, s.created_at
		 ORDER BY s.created_at ASC, s.session_id ASC`,
		student.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.SessionSummary, 0)
	for rows.Next() {
		var (
			id        string
			createdAt time.Time
			count     int64
		)
		if err := rows.Scan(&id, &createdAt, &count); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		// Rows arrive in creation order, so the rank is the running index.
		summaries = append(summaries, models.SessionSummary{
			SessionID:    id,
			SessionName:  sessionDisplayName(int64(len(summaries) + 1)),
			CreatedAt:    createdAt.Format(models.TimestampLayout),
			MessageCount: count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	// Present newest first.
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}
	return summaries, nil
}

// GetSessionName recomputes the display name for one session owned by the
// student with the given email. Returns sql.ErrNoRows when the session does
// not exist or belongs to someone else.
func (s *Service) GetSessionName(ctx context.Context, sessionID, email string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", invalidf("session_id is required")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", invalidf("email is required")
	}

	var (
		studentID int64
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.student_id, s.created_at
		 FROM sessions s
		 JOIN students st ON st.student_id = s.student_id
		 WHERE s.session_id = ? AND st.email = ?`,
		sessionID, email,
	).Scan(&studentID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("get session: %w", err)
	}

	rank, err := sessionRank(ctx, s.db, studentID, createdAt, sessionID)
	if err != nil {
		return "", err
	}
	return sessionDisplayName(rank), nil
}
