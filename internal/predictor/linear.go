package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LinearModel is a serialized linear regression:
// prediction = intercept + sum(coefficients[i] * features[i]).
type LinearModel struct {
	Kind         string    `json:"kind"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Features     []string  `json:"features,omitempty"`
}

// LoadLinearModel reads a linear model artifact from path.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %s", ErrModelUnavailable, path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, err)
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	if m.Kind != "" && m.Kind != "linear" {
		return fmt.Errorf("unsupported model kind %q", m.Kind)
	}
	if len(m.Coefficients) != FeatureCount {
		return fmt.Errorf("expected %d coefficients, got %d", FeatureCount, len(m.Coefficients))
	}
	if len(m.Features) != 0 && len(m.Features) != FeatureCount {
		return fmt.Errorf("expected %d feature names, got %d", FeatureCount, len(m.Features))
	}
	return nil
}

// Predict evaluates the model on features.
func (m *LinearModel) Predict(_ context.Context, features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.Coefficients), len(features))
	}
	y := m.Intercept
	for i, x := range features {
		y += m.Coefficients[i] * x
	}
	return y, nil
}
