package controller

import (
	"errors"

	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/http/controller/dto"
	"github.com/annolab/annolab-platform/repository"
	"github.com/annolab/annolab-platform/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

func (ctrl *Controller) StartAutoAnnotate(c *gin.Context) {
	projectID := paramUint(c, "project_id")
	if projectID == 0 {
		utils.JSON400(c, "invalid project_id")
		return
	}
	if _, err := ctrl.Repository.ProjectRepo.FindByID(projectID); err != nil {
		utils.JSON404(c, "project not found")
		return
	}

	var req dto.AutoAnnotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request payload")
		return
	}

	if _, err := ctrl.Repository.DatasetRepo.FindInProject(req.DatasetID, projectID); err != nil {
		utils.JSON404(c, "dataset not found")
		return
	}
	if _, err := ctrl.Repository.ModelWeightRepo.FindInProject(req.ModelID, projectID); err != nil {
		utils.JSON404(c, "model not found")
		return
	}

	conf := req.Conf
	if conf <= 0 {
		conf = 0.25
	}
	iou := req.IoU
	if iou <= 0 {
		iou = 0.5
	}

	job := &entity.Job{
		ProjectID: projectID,
		JobType:   entity.JobTypeAutoAnnotate,
		Status:    entity.JobStatusQueued,
		Payload: datatypes.JSONMap{
			"model_id":   req.ModelID,
			"dataset_id": req.DatasetID,
			"conf":       conf,
			"iou":        iou,
			"params":     req.Params,
		},
	}
	ctrl.enqueueJob(c, job)
}

func (ctrl *Controller) StartTrainYolo(c *gin.Context) {
	projectID := paramUint(c, "project_id")
	if projectID == 0 {
		utils.JSON400(c, "invalid project_id")
		return
	}
	if _, err := ctrl.Repository.ProjectRepo.FindByID(projectID); err != nil {
		utils.JSON404(c, "project not found")
		return
	}

	var req dto.TrainYoloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request payload")
		return
	}

	if _, err := ctrl.Repository.DatasetRepo.FindInProject(req.DatasetID, projectID); err != nil {
		utils.JSON404(c, "dataset not found")
		return
	}
	if _, err := ctrl.Repository.AnnotationSetRepo.FindByID(req.AnnotationSetID); err != nil {
		utils.JSON404(c, "annotation set not found")
		return
	}
	if _, err := ctrl.Repository.ModelWeightRepo.FindInProject(req.BaseModelID, projectID); err != nil {
		utils.JSON404(c, "model not found")
		return
	}

	job := &entity.Job{
		ProjectID: projectID,
		JobType:   entity.JobTypeTrainYolo,
		Status:    entity.JobStatusQueued,
		Message:   "queued",
		Payload: datatypes.JSONMap{
			"dataset_id":        req.DatasetID,
			"annotation_set_id": req.AnnotationSetID,
			"base_model_id":     req.BaseModelID,
			"hyperparameters":   req.Hyperparameters,
		},
	}
	ctrl.enqueueJob(c, job)
}

// enqueueJob persists the queued record, then hands its id to the work
// queue. The record outlives the request; workers own it from here on.
func (ctrl *Controller) enqueueJob(c *gin.Context, job *entity.Job) {
	ctx := c.Request.Context()

	if err := ctrl.Repository.JobRepo.Create(ctx, job); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to create job record: %v", err)
		utils.JSON500(c, "failed to create job")
		return
	}

	if err := ctrl.Infra.Produce.JobService.PublishJob(ctx, job.ID, job.JobType); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to publish job %d: %v", job.ID, err)
		status := entity.JobStatusFailed
		msg := "failed to enqueue job"
		_ = ctrl.Repository.JobRepo.Update(ctx, job.ID, repository.JobUpdate{Status: &status, Message: &msg})
		utils.JSON500(c, "failed to enqueue job")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Enqueued %s job %d for project %d", job.JobType, job.ID, job.ProjectID)
	utils.JSON200(c, job)
}

func (ctrl *Controller) GetJob(c *gin.Context) {
	jobID := paramUint(c, "job_id")
	if jobID == 0 {
		utils.JSON400(c, "invalid job_id")
		return
	}

	job, err := ctrl.Repository.JobRepo.FindByID(jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.JSON404(c, "job not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(c.Request.Context(), err, "[Job] Failed to load job %d: %v", jobID, err)
		utils.JSON500(c, "failed to load job")
		return
	}
	utils.JSON200(c, job)
}

func (ctrl *Controller) ListProjectJobs(c *gin.Context) {
	projectID := paramUint(c, "project_id")
	if projectID == 0 {
		utils.JSON400(c, "invalid project_id")
		return
	}
	if _, err := ctrl.Repository.ProjectRepo.FindByID(projectID); err != nil {
		utils.JSON404(c, "project not found")
		return
	}

	jobs, err := ctrl.Repository.JobRepo.ListForProject(projectID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(c.Request.Context(), err, "[Job] Failed to list jobs for project %d: %v", projectID, err)
		utils.JSON500(c, "failed to list jobs")
		return
	}
	utils.JSON200(c, jobs)
}
