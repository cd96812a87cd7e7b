package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annolab/annolab-platform/config"
	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/infra"
	"github.com/annolab/annolab-platform/infra/produce"
	"github.com/annolab/annolab-platform/repository"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// jobWorkerCount bounds how many jobs one consumer process runs at once.
// Training jobs saturate the GPU sidecar, so the pool stays small.
const jobWorkerCount = 4

// JobExecutor runs one job end to end: flips it to running, drives the
// pipeline for its kind, and records the terminal state. Every failure path
// ends in a failed status with the error as the job message.
type JobExecutor struct {
	repository *repository.Repository
	logger     *infra.LoggerClient
	inference  Inference
	trainer    Trainer
	store      ObjectStore
	workDir    string
}

func NewJobExecutor(repo *repository.Repository, logger *infra.LoggerClient, inference Inference, trainer Trainer, store ObjectStore, workDir string) *JobExecutor {
	return &JobExecutor{
		repository: repo,
		logger:     logger,
		inference:  inference,
		trainer:    trainer,
		store:      store,
		workDir:    workDir,
	}
}

// Execute looks up the job and dispatches by kind. Terminal jobs are skipped:
// a redelivered message must not re-run finished work.
func (e *JobExecutor) Execute(ctx context.Context, jobID uint) error {
	job, err := e.repository.JobRepo.FindByID(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		e.logger.WarningWithContextf(ctx, "[Job Executor] Job %d already %s, skipping", job.ID, job.Status)
		return nil
	}

	err = e.run(ctx, job)
	if err != nil {
		e.logger.ErrorWithContextf(ctx, err, "[Job Executor] Job %d failed: %v", job.ID, err)
		e.markFailed(ctx, job.ID, err)
	}
	return err
}

func (e *JobExecutor) run(ctx context.Context, job *entity.Job) (err error) {
	// a panic in a pipeline must not take the worker down with it
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	switch job.JobType {
	case entity.JobTypeAutoAnnotate:
		return e.runAutoAnnotate(ctx, job)
	case entity.JobTypeTrainYolo:
		return e.runTrainYolo(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.JobType)
	}
}

func (e *JobExecutor) markFailed(ctx context.Context, jobID uint, cause error) {
	status := entity.JobStatusFailed
	msg := cause.Error()
	if err := e.repository.JobRepo.Update(ctx, jobID, repository.JobUpdate{Status: &status, Message: &msg}); err != nil {
		e.logger.ErrorWithContextf(ctx, err, "[Job Executor] Failed to mark job %d failed: %v", jobID, err)
	}
}

func (e *JobExecutor) setProgress(ctx context.Context, jobID uint, progress float64, message string) {
	if err := e.repository.JobRepo.Update(ctx, jobID, repository.JobUpdate{Progress: &progress, Message: &message}); err != nil {
		e.logger.WarningWithContextf(ctx, "[Job Executor] Failed to update job %d progress: %v", jobID, err)
	}
}

func (e *JobExecutor) setRunning(ctx context.Context, jobID uint, message string) error {
	status := entity.JobStatusRunning
	progress := 0.0
	return e.repository.JobRepo.Update(ctx, jobID, repository.JobUpdate{Status: &status, Progress: &progress, Message: &message})
}

func (e *JobExecutor) markSuccess(ctx context.Context, jobID uint, message string) error {
	status := entity.JobStatusSuccess
	progress := 1.0
	return e.repository.JobRepo.Update(ctx, jobID, repository.JobUpdate{Status: &status, Progress: &progress, Message: &message})
}

// JobConsumer pulls job messages off the dispatch queue and feeds a bounded
// pool of executors. Messages are acked only after execution so a crashed
// worker's jobs get redelivered.
type JobConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
	executor   *JobExecutor

	jobCounter metric.Int64Counter
}

func NewJobConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository, cfg *config.Config) *JobConsumer {
	executor := NewJobExecutor(
		repo,
		infra.Logger,
		infra.InferenceService,
		infra.TrainingService,
		infra.Minio,
		cfg.EnvConfig.Storage.WorkDir,
	)

	meter := otel.Meter("annolab.worker")
	counter, err := meter.Int64Counter("jobs.processed")
	if err != nil {
		panic("Failed to create jobs.processed counter: " + err.Error())
	}

	return &JobConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
		executor:   executor,
		jobCounter: counter,
	}
}

func (c *JobConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(jobWorkerCount, 0, false); err != nil {
		return fmt.Errorf("failed to set channel QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		produce.JobDispatchQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register job consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Job Consumer] Started %d workers on queue: %s", jobWorkerCount, produce.JobDispatchQueue)

	for i := 0; i < jobWorkerCount; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					c.infra.Logger.InfoWithContextf(ctx, "[Job Consumer] Shutting down...")
					return
				case msg, ok := <-msgs:
					if !ok {
						c.infra.Logger.WarningWithContextf(ctx, "[Job Consumer] Channel closed")
						return
					}
					c.handleJob(ctx, msg)
				}
			}
		}()
	}

	return nil
}

func (c *JobConsumer) handleJob(ctx context.Context, msg amqp.Delivery) {
	var payload produce.JobMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Job Consumer] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Job Consumer] Processing %s job %d", payload.Kind, payload.JobID)

	// Jobs outlive the consumer context; cancellation mid-run would leave the
	// record stuck in running.
	execCtx, span := otel.Tracer("annolab.worker").Start(context.Background(), "worker.execute")
	span.SetAttributes(
		attribute.Int64("job.id", int64(payload.JobID)),
		attribute.String("job.kind", payload.Kind),
	)
	err := c.executor.Execute(execCtx, payload.JobID)
	span.End()

	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	c.jobCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job.kind", payload.Kind),
		attribute.String("job.outcome", outcome),
	))

	// the failure is recorded on the job record; redelivery would just fail again
	_ = msg.Ack(false)
}
