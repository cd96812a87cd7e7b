package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/infra"
	"github.com/annolab/annolab-platform/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const sampleResultsCSV = `epoch,train/box_loss,metrics/mAP50(B)
1,1.234,0.41
2,1.101,0.52
3,0.987,0.61
`

func TestLatestEpoch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")

	_, ok := latestEpoch(path)
	require.False(t, ok, "missing file yields no epoch")

	require.NoError(t, os.WriteFile(path, []byte("epoch,train/box_loss\n"), 0o644))
	_, ok = latestEpoch(path)
	require.False(t, ok, "header-only file yields no epoch")

	require.NoError(t, os.WriteFile(path, []byte(sampleResultsCSV), 0o644))
	epoch, ok := latestEpoch(path)
	require.True(t, ok)
	require.Equal(t, 3, epoch)
}

func TestTrainWatcherFoldsEpochsIntoJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := env.createJob(t, entity.JobTypeTrainYolo, datatypes.JSONMap{})
	running := entity.JobStatusRunning
	require.NoError(t, env.repo.JobRepo.Update(ctx, job.ID, repository.JobUpdate{Status: &running}))

	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	w := NewTrainWatcher(env.repo.JobRepo, infra.NewTestLogger(), job.ID, path, 10)

	// nothing on disk yet: no write
	w.tick(ctx)
	got := env.reloadJob(t, job.ID)
	require.Zero(t, got.Progress)

	require.NoError(t, os.WriteFile(path, []byte("epoch,loss\n1,1.0\n5,0.5\n"), 0o644))
	w.tick(ctx)
	got = env.reloadJob(t, job.ID)
	require.InDelta(t, trainProgressTrainStart+(trainProgressTrainEnd-trainProgressTrainStart)*0.5, got.Progress, 1e-9)
	require.Equal(t, "training epoch 5/10", got.Message)

	// same epoch again: suppressed, message untouched
	w.tick(ctx)
	got = env.reloadJob(t, job.ID)
	require.Equal(t, "training epoch 5/10", got.Message)
}

func TestTrainWatcherStopIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, entity.JobTypeTrainYolo, datatypes.JSONMap{})
	w := NewTrainWatcher(env.repo.JobRepo, infra.NewTestLogger(), job.ID, filepath.Join(t.TempDir(), "results.csv"), 5)

	w.Start()
	w.Stop()
	w.Stop()
}
