package storage

import (
	"context"
	"errors"

	"fitness-dashboard/internal/models"
)

var (
	// ErrUserNotFound is returned when a username has no record.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a username that is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrSessionNotFound is returned for unknown or expired session tokens.
	ErrSessionNotFound = errors.New("session not found")
)

// Patch mutates a user record in place. exists is false when the user is
// being created, in which case user is a fresh record with defaults applied.
// Returning an error aborts the write.
type Patch func(user *models.User, exists bool) error

// Repository is the narrow access path to persisted users. Implementations
// decide how much of the underlying store is read and rewritten per call.
type Repository interface {
	Get(ctx context.Context, username string) (*models.User, error)
	Upsert(ctx context.Context, username string, patch Patch) error
}

// Exists reports whether username has a record.
func Exists(ctx context.Context, repo Repository, username string) (bool, error) {
	_, err := repo.Get(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CreateUser writes a new user with an empty history and the default goal.
func CreateUser(ctx context.Context, repo Repository, username, passwordHash string) error {
	return repo.Upsert(ctx, username, func(u *models.User, exists bool) error {
		if exists {
			return ErrUserExists
		}
		u.PasswordHash = passwordHash
		u.History = []models.WorkoutRecord{}
		u.Goal = models.DefaultGoal
		return nil
	})
}

// SetGoal updates the weekly goal of an existing user.
func SetGoal(ctx context.Context, repo Repository, username string, goal float64) error {
	return repo.Upsert(ctx, username, func(u *models.User, exists bool) error {
		if !exists {
			return ErrUserNotFound
		}
		u.Goal = goal
		return nil
	})
}

func newUser() *models.User {
	return &models.User{History: []models.WorkoutRecord{}}
}
