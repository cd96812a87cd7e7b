package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/annolab/annolab-platform/config"
)

// ErrTrainerOutOfMemory signals a recoverable out-of-memory during training.
// The caller is expected to retry with a smaller batch size.
var ErrTrainerOutOfMemory = errors.New("trainer out of memory")

// TrainSpec describes one training run. DataDir and RunDir are paths on the
// work volume shared with the training sidecar; the sidecar appends per-epoch
// metrics to <RunDir>/results.csv while the run is in flight.
type TrainSpec struct {
	DataDir        string `json:"data_dir"`
	BaseWeightsKey string `json:"base_weights_key"`
	RunDir         string `json:"run_dir"`
	Epochs         int    `json:"epochs"`
	Batch          int    `json:"batch"`
	ImageSize      int    `json:"imgsz"`
}

// TrainResult reports where the sidecar left the produced weights.
type TrainResult struct {
	WeightsPath string `json:"weights_path"`
}

type trainResponse struct {
	WeightsPath string `json:"weights_path"`
	Error       string `json:"error"`
}

type benchmarkRequest struct {
	WeightsPath string `json:"weights_path"`
	DataDir     string `json:"data_dir"`
	Split       string `json:"split"`
}

// TrainingService calls the model-training sidecar. Train blocks until the
// run finishes; there is no progress callback, live progress comes from
// tailing the run's results.csv.
type TrainingService struct {
	TrainingServiceURL string
	client             *http.Client
}

func InitTrainingService(cfg *config.EnvConfig) *TrainingService {
	url := cfg.ExternalService.TrainingServiceURL
	if url == "" {
		panic("Training service URL is not configured")
	}
	return &TrainingService{
		TrainingServiceURL: url,
		// training runs for hours; rely on ctx for cancellation instead
		client: &http.Client{Timeout: 0},
	}
}

func (s *TrainingService) Train(ctx context.Context, spec TrainSpec) (*TrainResult, error) {
	url := fmt.Sprintf("%s/api/v1/train", s.TrainingServiceURL)

	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var out trainResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("training service returned %d: %s", resp.StatusCode, string(raw))
	}

	if resp.StatusCode != http.StatusOK || out.Error != "" {
		if isOutOfMemory(out.Error) {
			return nil, fmt.Errorf("%w: %s", ErrTrainerOutOfMemory, out.Error)
		}
		return nil, fmt.Errorf("training failed: %s", out.Error)
	}

	return &TrainResult{WeightsPath: out.WeightsPath}, nil
}

// Benchmark evaluates weights on the given split and returns metric values.
func (s *TrainingService) Benchmark(ctx context.Context, weightsPath, dataDir, split string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/api/v1/benchmark", s.TrainingServiceURL)

	body, err := json.Marshal(benchmarkRequest{WeightsPath: weightsPath, DataDir: dataDir, Split: split})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("training service returned %d: %s", resp.StatusCode, string(raw))
	}

	var metrics map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return metrics, nil
}

func isOutOfMemory(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "out of memory") || strings.Contains(m, "cuda oom")
}
