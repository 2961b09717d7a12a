package models

import (
	"errors"
	"time"
)

// DefaultGoal is the weekly calorie goal assigned to users without one.
const DefaultGoal = 2000.0

// Uncategorized is the workout type reported for records logged before
// workout types existed.
const Uncategorized = "Uncategorized"

// TimestampLayout is the layout used for newly logged workouts.
const TimestampLayout = time.RFC3339

// WorkoutRecord is one logged exercise session with its estimated calorie burn.
type WorkoutRecord struct {
	Timestamp     string  `json:"timestamp"`
	WorkoutType   string  `json:"workout_type,omitempty"`
	Duration      float64 `json:"duration"`
	HeartRate     float64 `json:"heart_rate"`
	CaloriesBurnt float64 `json:"calories_burnt"`
}

// timestampLayouts lists accepted ISO-8601 forms. Zoneless timestamps are
// read in the server's local time zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ErrInvalidTimestamp is returned when a record timestamp cannot be parsed.
var ErrInvalidTimestamp = errors.New("invalid workout timestamp")

// Time parses the record timestamp in the given location.
func (w WorkoutRecord) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, w.Timestamp, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// Category returns the workout type, falling back to Uncategorized.
func (w WorkoutRecord) Category() string {
	if w.WorkoutType == "" {
		return Uncategorized
	}
	return w.WorkoutType
}

// User is the persisted account record. The username is the store key and is
// not repeated inside the record.
type User struct {
	PasswordHash string          `json:"password"`
	History      []WorkoutRecord `json:"history"`
	Goal         float64         `json:"goal,omitempty"`
}

// WeeklyGoal returns the configured goal or DefaultGoal when unset.
func (u *User) WeeklyGoal() float64 {
	if u.Goal <= 0 {
		return DefaultGoal
	}
	return u.Goal
}

// Store maps usernames to their records.
type Store map[string]*User

// Normalize applies the store defaults: nil records are dropped and missing
// histories become empty.
func (s Store) Normalize() {
	for name, u := range s {
		if u == nil {
			delete(s, name)
			continue
		}
		if u.History == nil {
			u.History = []WorkoutRecord{}
		}
	}
}

// Session represents a user session.
type Session struct {
	Token        string    `json:"token"`
	Username     string    `json:"username"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}
