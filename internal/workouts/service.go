// Package workouts validates workout submissions, estimates their calorie
// burn and appends them to the user's history.
package workouts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"fitness-dashboard/internal/models"
	"fitness-dashboard/internal/predictor"
	"fitness-dashboard/internal/storage"
)

// ErrSaveFailed wraps store write failures while recording a workout.
var ErrSaveFailed = errors.New("save workout")

// Types lists the selectable workout types.
var Types = []string{"Cardio", "Strength Training", "Yoga", "Sports", "Other"}

// Range is an inclusive numeric bound for a form field.
type Range struct {
	Min, Max float64
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Input bounds for the workout form.
var (
	AgeRange       = Range{1, 100}
	HeightRange    = Range{100, 250}
	WeightRange    = Range{30, 200}
	DurationRange  = Range{1, 300}
	HeartRateRange = Range{50, 200}
	BodyTempRange  = Range{35, 42}
)

// InvalidInputError reports a form field outside its bounds, or a choice
// field holding a value not in Choices.
type InvalidInputError struct {
	Field   string
	Range   Range
	Choices []string
}

func (e *InvalidInputError) Error() string {
	if len(e.Choices) > 0 {
		return fmt.Sprintf("%s must be one of %s", e.Field, strings.Join(e.Choices, ", "))
	}
	return fmt.Sprintf("%s must be between %g and %g", e.Field, e.Range.Min, e.Range.Max)
}

// Input is a submitted workout form.
type Input struct {
	WorkoutType string
	Features    predictor.Features
}

// Validate checks the workout type and every numeric bound.
func (in Input) Validate() error {
	if !slices.Contains(Types, in.WorkoutType) {
		return &InvalidInputError{Field: "workout_type", Choices: Types}
	}
	if in.Features.Gender != predictor.Female && in.Features.Gender != predictor.Male {
		return &InvalidInputError{
			Field:   "gender",
			Choices: []string{string(predictor.Male), string(predictor.Female)},
		}
	}

	checks := []struct {
		field string
		value float64
		rng   Range
	}{
		{"age", in.Features.Age, AgeRange},
		{"height", in.Features.HeightCm, HeightRange},
		{"weight", in.Features.WeightKg, WeightRange},
		{"duration", in.Features.DurationMin, DurationRange},
		{"heart_rate", in.Features.HeartRateBPM, HeartRateRange},
		{"body_temp", in.Features.BodyTempC, BodyTempRange},
	}
	for _, c := range checks {
		if !c.rng.contains(c.value) {
			return &InvalidInputError{Field: c.field, Range: c.rng}
		}
	}
	return nil
}

// Recorder appends workouts to a user's history.
type Recorder struct {
	repo storage.Repository
}

// NewRecorder returns a Recorder writing through repo.
func NewRecorder(repo storage.Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record appends w to username's history and persists it.
func (r *Recorder) Record(ctx context.Context, username string, w models.WorkoutRecord) error {
	return r.repo.Upsert(ctx, username, func(u *models.User, exists bool) error {
		if !exists {
			return storage.ErrUserNotFound
		}
		if u.History == nil {
			u.History = []models.WorkoutRecord{}
		}
		u.History = append(u.History, w)
		return nil
	})
}

// Service estimates and records workouts.
type Service struct {
	recorder  *Recorder
	estimator *predictor.Adapter
	now       func() time.Time
}

// NewService returns a Service. estimator may wrap a nil model, in which case
// Log always fails with predictor.ErrModelUnavailable.
func NewService(repo storage.Repository, estimator *predictor.Adapter) *Service {
	return &Service{
		recorder:  NewRecorder(repo),
		estimator: estimator,
		now:       time.Now,
	}
}

// PredictionAvailable reports whether a model is loaded.
func (s *Service) PredictionAvailable() bool {
	return s.estimator.Available()
}

// Log validates in, estimates calories and appends the workout to username's
// history. Nothing is recorded when validation or prediction fails.
func (s *Service) Log(ctx context.Context, username string, in Input) (*models.WorkoutRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	calories, err := s.estimator.Estimate(ctx, in.Features)
	if err != nil {
		return nil, err
	}

	rec := models.WorkoutRecord{
		Timestamp:     s.now().Format(models.TimestampLayout),
		WorkoutType:   in.WorkoutType,
		Duration:      in.Features.DurationMin,
		HeartRate:     in.Features.HeartRateBPM,
		CaloriesBurnt: calories,
	}
	if err := s.recorder.Record(ctx, username, rec); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return &rec, nil
}
