// Package predictor turns workout form inputs into a calorie estimate using an
// externally supplied regression model.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrModelUnavailable is returned when no model artifact could be loaded.
var ErrModelUnavailable = errors.New("model not loaded")

// FeatureCount is the length of the feature vector fed to the model.
const FeatureCount = 7

// Predictor is the model capability: one scalar prediction per feature vector.
type Predictor interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// Gender is the binary gender input of the model.
type Gender string

const (
	Female Gender = "Female"
	Male   Gender = "Male"
)

// Features holds the model inputs in physical units.
type Features struct {
	Gender       Gender
	Age          float64
	HeightCm     float64
	WeightKg     float64
	DurationMin  float64
	HeartRateBPM float64
	BodyTempC    float64
}

// Vector returns the inputs in model order: gender (Male=1), age, height,
// weight, duration, heart rate, body temperature.
func (f Features) Vector() []float64 {
	gender := 0.0
	if f.Gender == Male {
		gender = 1
	}
	return []float64{gender, f.Age, f.HeightCm, f.WeightKg, f.DurationMin, f.HeartRateBPM, f.BodyTempC}
}

// Adapter wraps a model and post-processes its output. A nil model disables
// prediction.
type Adapter struct {
	model Predictor
}

// NewAdapter returns an Adapter over model, which may be nil.
func NewAdapter(model Predictor) *Adapter {
	return &Adapter{model: model}
}

// Available reports whether a model is loaded.
func (a *Adapter) Available() bool {
	return a != nil && a.model != nil
}

// Estimate predicts the calories burnt for f. The result is clamped at zero
// and rounded to two decimals.
func (a *Adapter) Estimate(ctx context.Context, f Features) (float64, error) {
	if !a.Available() {
		return 0, ErrModelUnavailable
	}

	raw, err := a.model.Predict(ctx, f.Vector())
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("predict: model returned %v", raw)
	}
	if raw < 0 {
		raw = 0
	}
	return Round2(raw), nil
}

// Round2 rounds x to two decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Options selects the model source. URL takes precedence over Path.
type Options struct {
	Path string
	URL  string
}

// Load opens the model described by opts. It returns ErrModelUnavailable
// (possibly wrapped) when no usable model is configured.
func Load(opts Options) (Predictor, error) {
	switch {
	case opts.URL != "":
		return NewRemoteModel(opts.URL, nil), nil
	case opts.Path != "":
		m, err := LoadLinearModel(opts.Path)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, ErrModelUnavailable
	}
}
