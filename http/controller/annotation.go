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

func (ctrl *Controller) GetAnnotations(c *gin.Context) {
	ctx := c.Request.Context()

	itemID := paramUint(c, "item_id")
	if itemID == 0 {
		utils.JSON400(c, "invalid item_id")
		return
	}
	item, err := ctrl.Repository.DatasetRepo.FindItemByID(itemID)
	if err != nil {
		utils.JSON404(c, "item not found")
		return
	}

	asetID := ctrl.pickAnnotationSetID(c, 0)
	if asetID == 0 {
		// fall back to the project's default set
		ds, err := ctrl.Repository.DatasetRepo.FindByID(item.DatasetID)
		if err != nil {
			utils.JSON404(c, "dataset not found")
			return
		}
		aset, err := ctrl.Repository.AnnotationSetRepo.GetOrCreateDefault(ds.ProjectID)
		if err != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Annotation] Failed to resolve default set: %v", err)
			utils.JSON500(c, "failed to resolve annotation set")
			return
		}
		asetID = aset.ID
	}

	annotations, err := ctrl.Repository.AnnotationRepo.ListForItem(itemID, asetID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Annotation] Failed to list annotations for item %d: %v", itemID, err)
		utils.JSON500(c, "failed to list annotations")
		return
	}
	utils.JSON200(c, annotations)
}

func (ctrl *Controller) ReplaceAnnotations(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	itemID := paramUint(c, "item_id")
	if itemID == 0 {
		utils.JSON400(c, "invalid item_id")
		return
	}
	if _, err := ctrl.Repository.DatasetRepo.FindItemByID(itemID); err != nil {
		utils.JSON404(c, "item not found")
		return
	}

	asetID := ctrl.pickAnnotationSetID(c, 0)
	if asetID == 0 {
		utils.JSON400(c, "annotation_set_id required")
		return
	}

	var payload []dto.AnnotationIn
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSON400(c, "Invalid request payload")
		return
	}

	actor, err := ctrl.Repository.ProjectRepo.FindUserByID(userID)
	if err != nil {
		utils.JSON401(c, "Unauthorized: unknown user")
		return
	}

	incoming := make([]entity.Annotation, 0, len(payload))
	for _, a := range payload {
		incoming = append(incoming, entity.Annotation{
			ClassID:    a.ClassID,
			X:          a.X,
			Y:          a.Y,
			W:          a.W,
			H:          a.H,
			Confidence: a.Confidence,
			Approved:   a.Approved,
			Attributes: datatypes.JSONMap(a.Attributes),
		})
	}

	replaced, err := ctrl.Repository.AnnotationRepo.ReplaceAll(itemID, asetID, incoming, actor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoActiveLock):
			utils.JSON409(c, "no active lock (open image again to acquire lock)")
		case errors.Is(err, repository.ErrInvalidClass):
			utils.JSON400(c, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			utils.JSON404(c, err.Error())
		default:
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Annotation] Failed to replace annotations for item %d: %v", itemID, err)
			utils.JSON500(c, "failed to replace annotations")
		}
		return
	}

	utils.JSON200(c, replaced)
}
