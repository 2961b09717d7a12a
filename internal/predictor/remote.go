package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRemoteTimeout bounds a single remote prediction.
const DefaultRemoteTimeout = 5 * time.Second

// RemoteModel calls a model served over HTTP. The endpoint receives
// {"features": [...]} and answers {"prediction": x}.
type RemoteModel struct {
	url    string
	client *http.Client
}

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	Prediction *float64 `json:"prediction"`
}

// NewRemoteModel returns a model client for url. A nil client gets a default
// one with DefaultRemoteTimeout.
func NewRemoteModel(url string, client *http.Client) *RemoteModel {
	if client == nil {
		client = &http.Client{Timeout: DefaultRemoteTimeout}
	}
	return &RemoteModel{url: url, client: client}
}

// Predict posts features to the model endpoint.
func (m *RemoteModel) Predict(ctx context.Context, features []float64) (float64, error) {
	body, err := json.Marshal(remoteRequest{Features: features})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("model responded %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode model response: %w", err)
	}
	if out.Prediction == nil {
		return 0, fmt.Errorf("model response missing prediction")
	}
	return *out.Prediction, nil
}
