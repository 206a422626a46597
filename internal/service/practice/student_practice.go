package practice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"counselgo/internal/models"
	"counselgo/internal/storage"
)

// Service handles student identity and conversation persistence.
type Service struct {
	db     *sql.DB
	driver string

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
	studentLocks map[int64]*sync.Mutex
}

// NewService builds a new practice service. The driver selects
// driver-specific statements, mirroring storage.Migrate.
func NewService(db *sql.DB, driver string) *Service {
	return &Service{
		db:           db,
		driver:       strings.ToLower(driver),
		sessionLocks: make(map[string]*sync.Mutex),
		studentLocks: make(map[int64]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing appends for one session.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessionLocks[sessionID] = lock
	}
	return lock
}

// studentLock returns the mutex serializing session creation for one student.
func (s *Service) studentLock(studentID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.studentLocks[studentID]
	if !ok {
		lock = &sync.Mutex{}
		s.studentLocks[studentID] = lock
	}
	return lock
}

// upsertStudentQuery picks the conflict clause the backend understands.
func upsertStudentQuery(driver string) string {
	if strings.ToLower(driver) == "mysql" {
		return `INSERT INTO students (email, name, created_at, last_login)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE last_login = VALUES(last_login)`
	}
	return `INSERT INTO students (email, name, created_at, last_login)
	 VALUES (?, ?, ?, ?)
	 ON CONFLICT(email) DO UPDATE SET last_login = excluded.last_login`
}

// GetOrCreateStudent returns the student identified by email, creating the row
// on first contact. On a return visit last_login is advanced and the stored
// name is left untouched. The email uniqueness constraint makes concurrent
// first contact safe: the insert upserts on conflict instead of failing.
func (s *Service) GetOrCreateStudent(ctx context.Context, email, name string) (*models.Student, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalidf("email is required")
	}
	name = strings.TrimSpace(name)

	now := time.Now().UTC()
	var student models.Student
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsertStudentQuery(s.driver),
			email, name, now, now,
		)
		if err != nil {
			return fmt.Errorf("upsert student: %w", err)
		}
		row := tx.QueryRowContext(ctx,
			`SELECT student_id, email, name, created_at, last_login FROM students WHERE email = ?`,
			email,
		)
		if err := row.Scan(&student.ID, &student.Email, &student.Name, &student.CreatedAt, &student.LastLogin); err != nil {
			return fmt.Errorf("read student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// GetStudentByEmail looks up a student without side effects. Returns
// sql.ErrNoRows when no student has the email.
func (s *Service) GetStudentByEmail(ctx context.Context, email string) (*models.Student, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalidf("email is required")
	}
	var student models.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT student_id, email, name, created_at, last_login FROM students WHERE email = ?`,
		email,
	).Scan(&student.ID, &student.Email, &student.Name, &student.CreatedAt, &student.LastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &student, nil
}

// Ping verifies the storage backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping storage: %w", err)
	}
	return nil
}
