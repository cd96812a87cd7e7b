package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/infra"
	"github.com/annolab/annolab-platform/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db        *gorm.DB
	repo      *repository.Repository
	inference *fakeInference
	trainer   *fakeTrainer
	store     *fakeStore
	executor  *JobExecutor
	workDir   string

	project entity.Project
	classes []entity.LabelClass
	dataset entity.Dataset
	items   []entity.DatasetItem
	model   entity.ModelWeight
	aset    entity.AnnotationSet
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, infra.AutoMigrate(db))

	env := &testEnv{
		db:        db,
		repo:      repository.NewRepository(db, nil),
		inference: newFakeInference(),
		trainer:   newFakeTrainer(),
		store:     newFakeStore(),
		workDir:   t.TempDir(),
	}
	env.executor = NewJobExecutor(env.repo, infra.NewTestLogger(), env.inference, env.trainer, env.store, env.workDir)

	env.project = entity.Project{Name: "street-scenes", TaskType: "detection"}
	require.NoError(t, db.Create(&env.project).Error)

	env.classes = []entity.LabelClass{
		{ProjectID: env.project.ID, Name: "person", OrderIndex: 0},
		{ProjectID: env.project.ID, Name: "car", OrderIndex: 1},
	}
	require.NoError(t, db.Create(&env.classes).Error)

	env.dataset = entity.Dataset{ProjectID: env.project.ID, Name: "cam-01"}
	require.NoError(t, db.Create(&env.dataset).Error)

	env.items = []entity.DatasetItem{
		{DatasetID: env.dataset.ID, RelPath: "datasets/cam-01/0001.jpg", FileName: "0001.jpg", Width: 1920, Height: 1080, Split: entity.SplitTrain},
		{DatasetID: env.dataset.ID, RelPath: "datasets/cam-01/0002.jpg", FileName: "0002.jpg", Width: 1920, Height: 1080, Split: entity.SplitVal},
	}
	require.NoError(t, db.Create(&env.items).Error)

	env.model = entity.ModelWeight{
		ProjectID: env.project.ID,
		Name:      "yolo-base",
		Framework: "ultralytics",
		RelPath:   "weights/yolo-base.pt",
	}
	require.NoError(t, db.Create(&env.model).Error)

	env.aset = entity.AnnotationSet{ProjectID: env.project.ID, Name: "default", Source: entity.SetSourceManual}
	require.NoError(t, db.Create(&env.aset).Error)

	return env
}

func (env *testEnv) createJob(t *testing.T, jobType string, payload datatypes.JSONMap) *entity.Job {
	t.Helper()
	job := &entity.Job{ProjectID: env.project.ID, JobType: jobType, Payload: payload}
	require.NoError(t, env.repo.JobRepo.Create(context.Background(), job))
	return job
}

func (env *testEnv) reloadJob(t *testing.T, id uint) *entity.Job {
	t.Helper()
	job, err := env.repo.JobRepo.FindByID(id)
	require.NoError(t, err)
	return job
}

// fakeInference serves canned metadata per weights key and predictions per
// image key.
type fakeInference struct {
	meta  map[string]*infra.ModelMetadata
	preds map[string][]infra.Prediction
}

func newFakeInference() *fakeInference {
	return &fakeInference{
		meta:  map[string]*infra.ModelMetadata{},
		preds: map[string][]infra.Prediction{},
	}
}

func (f *fakeInference) ModelMetadata(_ context.Context, weightsKey string) (*infra.ModelMetadata, error) {
	meta, ok := f.meta[weightsKey]
	if !ok {
		return nil, fmt.Errorf("no metadata for %s", weightsKey)
	}
	return meta, nil
}

func (f *fakeInference) Predict(_ context.Context, _, imageKey string, _, _ float64) ([]infra.Prediction, error) {
	return f.preds[imageKey], nil
}

// fakeTrainer fails with the trainer OOM error while the batch is above
// oomAboveBatch, then writes best.pt under the run dir and succeeds. A
// non-empty panicMsg makes every attempt panic instead.
type fakeTrainer struct {
	oomAboveBatch int
	panicMsg      string
	batches       []int
	metrics       map[string]float64
}

func newFakeTrainer() *fakeTrainer {
	return &fakeTrainer{
		oomAboveBatch: 1 << 20, // never OOM unless a test lowers it
		metrics:       map[string]float64{"mAP50": 0.91, "mAP50-95": 0.64},
	}
}

func (f *fakeTrainer) Train(_ context.Context, spec infra.TrainSpec) (*infra.TrainResult, error) {
	f.batches = append(f.batches, spec.Batch)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if spec.Batch > f.oomAboveBatch {
		return nil, fmt.Errorf("%w: CUDA out of memory", infra.ErrTrainerOutOfMemory)
	}
	weightsPath := filepath.Join(spec.RunDir, "weights", "best.pt")
	if err := os.MkdirAll(filepath.Dir(weightsPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(weightsPath, []byte("weights"), 0o644); err != nil {
		return nil, err
	}
	return &infra.TrainResult{WeightsPath: weightsPath}, nil
}

func (f *fakeTrainer) Benchmark(_ context.Context, _, _, _ string) (map[string]float64, error) {
	return f.metrics, nil
}

// fakeStore materializes fetched objects as stub files and records uploads.
type fakeStore struct {
	missing map[string]bool
	uploads map[string]string // key -> source path
}

func newFakeStore() *fakeStore {
	return &fakeStore{missing: map[string]bool{}, uploads: map[string]string{}}
}

func (f *fakeStore) FetchToFile(_ context.Context, key string, dst string) error {
	if f.missing[key] {
		return fmt.Errorf("object %s not found", key)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(key), 0o644)
}

func (f *fakeStore) UploadFile(_ context.Context, src string, key string) error {
	if _, err := os.Stat(src); err != nil {
		return err
	}
	f.uploads[key] = src
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	return !f.missing[key], nil
}
