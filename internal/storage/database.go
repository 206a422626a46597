package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"counselgo/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database selected by dbType using the matching config entry.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		for _, pragma := range []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("apply sqlite pragma: %w", err)
			}
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS students (
				student_id INTEGER PRIMARY KEY AUTOINCREMENT,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				last_login DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				session_id TEXT PRIMARY KEY,
				student_id INTEGER NOT NULL,
				persona_type TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				FOREIGN KEY(student_id) REFERENCES students(student_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				message_id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				sender_type TEXT NOT NULL,
				content TEXT NOT NULL,
				sequence_number INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				UNIQUE(session_id, sequence_number),
				FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_student ON sessions(student_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, sequence_number)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS students (
				student_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				email VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL,
				created_at DATETIME(6) NOT NULL,
				last_login DATETIME(6) NOT NULL,
				PRIMARY KEY (student_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS sessions (
				session_id VARCHAR(36) NOT NULL,
				student_id BIGINT UNSIGNED NOT NULL,
				persona_type VARCHAR(100) NOT NULL,
				created_at DATETIME(6) NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				PRIMARY KEY (session_id),
				INDEX idx_sessions_student (student_id, created_at),
				CONSTRAINT fk_sessions_student FOREIGN KEY (student_id) REFERENCES students(student_id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS messages (
				message_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				session_id VARCHAR(36) NOT NULL,
				sender_type VARCHAR(50) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				sequence_number BIGINT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (message_id),
				UNIQUE KEY uniq_session_sequence (session_id, sequence_number),
				CONSTRAINT fk_messages_session FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
