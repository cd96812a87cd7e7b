package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/infra"
	"gorm.io/gorm"
)

const jobCacheTTL = time.Hour

// JobUpdate is a partial update: nil fields are left untouched.
type JobUpdate struct {
	Status   *entity.JobStatus
	Progress *float64
	Message  *string
}

// JobRepository is the sole write path for Job records. Updates silently
// no-op once the job is terminal, so a stray executor cannot resurrect a
// finished job. Every mutation writes the streamable projection through to
// Redis; cache failures are ignored, the database row stays authoritative.
type JobRepository struct {
	db    *gorm.DB
	cache *infra.RedisClient // optional
}

func NewJobRepository(db *gorm.DB, cache *infra.RedisClient) *JobRepository {
	return &JobRepository{db: db, cache: cache}
}

func jobCacheKey(id uint) string {
	return fmt.Sprintf("job:%d", id)
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	if job.Status == "" {
		job.Status = entity.JobStatusQueued
	}
	if err := r.db.Create(job).Error; err != nil {
		return err
	}
	r.cacheProjection(ctx, job)
	return nil
}

func (r *JobRepository) FindByID(id uint) (*entity.Job, error) {
	var job entity.Job
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) ListForProject(projectID uint) ([]entity.Job, error) {
	var jobs []entity.Job
	err := r.db.Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(200).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Update applies a partial update and always advances updated_at. The WHERE
// clause excludes terminal rows, so updates against a finished job are
// silently dropped.
func (r *JobRepository) Update(ctx context.Context, id uint, upd JobUpdate) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if upd.Status != nil {
		updates["status"] = *upd.Status
	}
	if upd.Progress != nil {
		updates["progress"] = *upd.Progress
	}
	if upd.Message != nil {
		updates["message"] = *upd.Message
	}

	res := r.db.Model(&entity.Job{}).
		Where("id = ? AND status NOT IN ?", id, []entity.JobStatus{entity.JobStatusSuccess, entity.JobStatusFailed}).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// terminal no-op, or the job does not exist
		var count int64
		if err := r.db.Model(&entity.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("job %d: %w", id, ErrNotFound)
		}
		return nil
	}

	r.refreshCache(ctx, id)
	return nil
}

// MergePayload shallow-merges the patch into the job's free-form payload
// without touching status, progress or message. Terminal jobs are left
// untouched.
func (r *JobRepository) MergePayload(ctx context.Context, id uint, patch map[string]interface{}) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var job entity.Job
		if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("job %d: %w", id, ErrNotFound)
			}
			return err
		}
		if job.Status.IsTerminal() {
			return nil
		}
		if job.Payload == nil {
			job.Payload = map[string]interface{}{}
		}
		for k, v := range patch {
			job.Payload[k] = v
		}
		return tx.Model(&entity.Job{}).Where("id = ?", id).
			Updates(map[string]interface{}{"payload": job.Payload, "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return err
	}
	r.refreshCache(ctx, id)
	return nil
}

// FindProjection reads the streamable view, preferring the Redis cache.
func (r *JobRepository) FindProjection(ctx context.Context, id uint) (*entity.JobProjection, error) {
	if r.cache != nil {
		var proj entity.JobProjection
		if err := r.cache.Get(ctx, jobCacheKey(id), &proj); err == nil {
			return &proj, nil
		}
	}
	job, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	r.cacheProjection(ctx, job)
	proj := job.Projection()
	return &proj, nil
}

func (r *JobRepository) refreshCache(ctx context.Context, id uint) {
	if r.cache == nil {
		return
	}
	if job, err := r.FindByID(id); err == nil {
		r.cacheProjection(ctx, job)
	}
}

func (r *JobRepository) cacheProjection(ctx context.Context, job *entity.Job) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Set(ctx, jobCacheKey(job.ID), job.Projection(), jobCacheTTL)
}
