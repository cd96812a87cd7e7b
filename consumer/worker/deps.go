package worker

import (
	"context"

	"github.com/annolab/annolab-platform/infra"
)

// Inference is the slice of the inference sidecar the pipelines use.
type Inference interface {
	ModelMetadata(ctx context.Context, weightsKey string) (*infra.ModelMetadata, error)
	Predict(ctx context.Context, weightsKey, imageKey string, conf, iou float64) ([]infra.Prediction, error)
}

// Trainer is the slice of the training sidecar the pipelines use.
type Trainer interface {
	Train(ctx context.Context, spec infra.TrainSpec) (*infra.TrainResult, error)
	Benchmark(ctx context.Context, weightsPath, dataDir, split string) (map[string]float64, error)
}

// ObjectStore moves files between object storage and the work volume.
type ObjectStore interface {
	FetchToFile(ctx context.Context, key string, dst string) error
	UploadFile(ctx context.Context, src string, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
