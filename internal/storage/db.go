package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitness-dashboard/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection. It holds login sessions and can also serve
// as the user Repository when the SQLite backend is selected.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			goal REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS workouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			timestamp TEXT NOT NULL,
			workout_type TEXT NOT NULL DEFAULT '',
			duration REAL NOT NULL,
			heart_rate REAL NOT NULL,
			calories_burnt REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workouts_username ON workouts(username, id)`,
		// Sessions reference usernames without a foreign key: with the JSON
		// backend the users live outside this database.
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			last_activity DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the user and its full workout history.
func (db *DB) Get(ctx context.Context, username string) (*models.User, error) {
	return getUser(ctx, db.conn, username)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getUser(ctx context.Context, q queryer, username string) (*models.User, error) {
	row := q.QueryRowContext(ctx,
		"SELECT password_hash, goal FROM users WHERE username = ?",
		username,
	)

	u := newUser()
	if err := row.Scan(&u.PasswordHash, &u.Goal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT timestamp, workout_type, duration, heart_rate, calories_burnt
		FROM workouts WHERE username = ? ORDER BY id`,
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var w models.WorkoutRecord
		if err := rows.Scan(&w.Timestamp, &w.WorkoutType, &w.Duration, &w.HeartRate, &w.CaloriesBurnt); err != nil {
			return nil, err
		}
		u.History = append(u.History, w)
	}

	return u, rows.Err()
}

// Upsert applies patch to username's record inside a transaction, so
// concurrent upserts against the same database do not lose updates.
func (db *DB) Upsert(ctx context.Context, username string, patch Patch) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	u, err := getUser(ctx, tx, username)
	exists := true
	if errors.Is(err, ErrUserNotFound) {
		u, exists, err = newUser(), false, nil
	}
	if err != nil {
		return err
	}

	if err = patch(u, exists); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, goal) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, goal = excluded.goal`,
		username, u.PasswordHash, u.Goal,
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM workouts WHERE username = ?", username); err != nil {
		return fmt.Errorf("clear workouts: %w", err)
	}
	for _, w := range u.History {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO workouts (username, timestamp, workout_type, duration, heart_rate, calories_burnt)
			VALUES (?, ?, ?, ?, ?, ?)`,
			username, w.Timestamp, w.WorkoutType, w.Duration, w.HeartRate, w.CaloriesBurnt,
		); err != nil {
			return fmt.Errorf("insert workout: %w", err)
		}
	}

	return tx.Commit()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token, username string, expiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, username, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, username, expiresAt.UTC(), now,
	)
	return err
}

// ValidateSession checks if a session token is valid and returns the session.
func (db *DB) ValidateSession(ctx context.Context, token string) (*models.Session, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT token, username, last_activity, expires_at
		FROM sessions
		WHERE token = ? AND expires_at > ?
	`, token, time.Now().UTC())

	var s models.Session
	if err := row.Scan(&s.Token, &s.Username, &s.LastActivity, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		now, newExpiresAt.UTC(), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and reports how many
// were deleted.
func (db *DB) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
