package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/annolab/annolab-platform/entity"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func seedJob(t *testing.T, jobs *JobRepository, projectID uint) *entity.Job {
	t.Helper()
	job := &entity.Job{
		ProjectID: projectID,
		JobType:   entity.JobTypeAutoAnnotate,
		Payload:   datatypes.JSONMap{"dataset_id": 1},
	}
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func TestJobCreateDefaultsToQueued(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)

	job := seedJob(t, jobs, f.project.ID)
	require.Equal(t, entity.JobStatusQueued, job.Status)
	require.Zero(t, job.Progress)
}

func TestJobPartialUpdate(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)
	ctx := context.Background()

	job := seedJob(t, jobs, f.project.ID)

	status := entity.JobStatusRunning
	msg := "starting"
	require.NoError(t, jobs.Update(ctx, job.ID, JobUpdate{Status: &status, Message: &msg}))

	// progress-only update leaves status and message alone
	progress := 0.5
	require.NoError(t, jobs.Update(ctx, job.ID, JobUpdate{Progress: &progress}))

	got, err := jobs.FindByID(job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusRunning, got.Status)
	require.Equal(t, "starting", got.Message)
	require.Equal(t, 0.5, got.Progress)
}

func TestJobUpdateIgnoredOnceTerminal(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)
	ctx := context.Background()

	job := seedJob(t, jobs, f.project.ID)

	failed := entity.JobStatusFailed
	msg := "boom"
	require.NoError(t, jobs.Update(ctx, job.ID, JobUpdate{Status: &failed, Message: &msg}))

	// a stray executor cannot resurrect the job, and gets no error either
	running := entity.JobStatusRunning
	progress := 0.3
	require.NoError(t, jobs.Update(ctx, job.ID, JobUpdate{Status: &running, Progress: &progress}))

	got, err := jobs.FindByID(job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFailed, got.Status)
	require.Equal(t, "boom", got.Message)
	require.Zero(t, got.Progress)
}

func TestJobUpdateUnknownJob(t *testing.T) {
	db := newTestDB(t)
	seedFixture(t, db)
	jobs := NewJobRepository(db, nil)

	progress := 0.1
	err := jobs.Update(context.Background(), 99999, JobUpdate{Progress: &progress})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobMergePayload(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)
	ctx := context.Background()

	job := seedJob(t, jobs, f.project.ID)

	require.NoError(t, jobs.MergePayload(ctx, job.ID, map[string]interface{}{"annotation_set_id": 7}))
	require.NoError(t, jobs.MergePayload(ctx, job.ID, map[string]interface{}{"report_key": "trainings/job_1/report.md"}))

	got, err := jobs.FindByID(job.ID)
	require.NoError(t, err)
	// earlier keys survive later merges; numbers scan back as json.Number
	require.Equal(t, json.Number("1"), got.Payload["dataset_id"])
	require.Equal(t, json.Number("7"), got.Payload["annotation_set_id"])
	require.Equal(t, "trainings/job_1/report.md", got.Payload["report_key"])
}

func TestJobMergePayloadSkipsTerminal(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)
	ctx := context.Background()

	job := seedJob(t, jobs, f.project.ID)

	success := entity.JobStatusSuccess
	require.NoError(t, jobs.Update(ctx, job.ID, JobUpdate{Status: &success}))

	require.NoError(t, jobs.MergePayload(ctx, job.ID, map[string]interface{}{"late": true}))

	got, err := jobs.FindByID(job.ID)
	require.NoError(t, err)
	require.NotContains(t, got.Payload, "late")
}

func TestJobFindProjection(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)
	ctx := context.Background()

	job := seedJob(t, jobs, f.project.ID)

	proj, err := jobs.FindProjection(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, proj.ID)
	require.Equal(t, entity.JobStatusQueued, proj.Status)

	_, err = jobs.FindProjection(ctx, 99999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJobListForProjectNewestFirst(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	jobs := NewJobRepository(db, nil)

	first := seedJob(t, jobs, f.project.ID)
	second := seedJob(t, jobs, f.project.ID)

	list, err := jobs.ListForProject(f.project.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// created_at resolution can tie; ids break the tie in practice
	require.Contains(t, []uint{first.ID, second.ID}, list[0].ID)
}
