package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/annolab/annolab-platform/config"
)

// Prediction is one detected box in top-left xywh pixel coordinates.
type Prediction struct {
	ClassIndex int      `json:"cls_idx"`
	ClassName  string   `json:"cls_name"`
	Confidence *float64 `json:"conf"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	W          float64  `json:"w"`
	H          float64  `json:"h"`
}

// ModelMetadata describes a weights file as reported by the inference sidecar.
type ModelMetadata struct {
	Task       string            `json:"task"`
	ClassNames map[string]string `json:"class_names"` // index -> name
}

type predictRequest struct {
	WeightsKey string  `json:"weights_key"`
	ImageKey   string  `json:"image_key"`
	Conf       float64 `json:"conf"`
	IoU        float64 `json:"iou"`
}

type predictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// InferenceService calls the model-inference sidecar. Weights and images are
// addressed by their object-storage keys; the sidecar shares the bucket.
type InferenceService struct {
	InferenceServiceURL string
	client              *http.Client
}

func InitInferenceService(cfg *config.EnvConfig) *InferenceService {
	url := cfg.ExternalService.InferenceServiceURL
	if url == "" {
		panic("Inference service URL is not configured")
	}
	return &InferenceService{
		InferenceServiceURL: url,
		client:              &http.Client{Timeout: 120 * time.Second},
	}
}

// ModelMetadata loads task type and class vocabulary for a weights object.
func (s *InferenceService) ModelMetadata(ctx context.Context, weightsKey string) (*ModelMetadata, error) {
	url := fmt.Sprintf("%s/api/v1/models/metadata?weights_key=%s", s.InferenceServiceURL, weightsKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, string(raw))
	}

	var meta ModelMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &meta, nil
}

// Predict runs detection on one image and returns the predicted boxes.
func (s *InferenceService) Predict(ctx context.Context, weightsKey, imageKey string, conf, iou float64) ([]Prediction, error) {
	url := fmt.Sprintf("%s/api/v1/predict", s.InferenceServiceURL)

	body, err := json.Marshal(predictRequest{
		WeightsKey: weightsKey,
		ImageKey:   imageKey,
		Conf:       conf,
		IoU:        iou,
	})
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
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, string(raw))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Predictions, nil
}
