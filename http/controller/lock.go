package controller

import (
	"errors"
	"strconv"
	"time"

	"github.com/annolab/annolab-platform/http/controller/dto"
	"github.com/annolab/annolab-platform/repository"
	"github.com/annolab/annolab-platform/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultLockTTLSeconds = 600
	minLockTTLSeconds     = 30
	maxLockTTLSeconds     = 3600
)

// clampTTL bounds the requested lease TTL to a sane window.
func clampTTL(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = defaultLockTTLSeconds
	}
	if seconds < minLockTTLSeconds {
		seconds = minLockTTLSeconds
	}
	if seconds > maxLockTTLSeconds {
		seconds = maxLockTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}

// pickAnnotationSetID accepts the set id from the body or the query string,
// whichever the client sent.
func (ctrl *Controller) pickAnnotationSetID(c *gin.Context, bodyValue uint) uint {
	if bodyValue > 0 {
		return bodyValue
	}
	v, err := strconv.ParseUint(c.Query("annotation_set_id"), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func (ctrl *Controller) AcquireLock(c *gin.Context) {
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

	var req dto.AcquireLockRequest
	_ = c.ShouldBindJSON(&req) // body is optional, set id may come via query

	asetID := ctrl.pickAnnotationSetID(c, req.AnnotationSetID)
	if asetID == 0 {
		utils.JSON400(c, "annotation_set_id required")
		return
	}

	expiresAt, err := ctrl.Repository.LockRepo.Acquire(asetID, itemID, userID, clampTTL(req.TTLSeconds))
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			utils.JSON409(c, "locked by another user")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Lock] Failed to acquire lock for item %d: %v", itemID, err)
		utils.JSON500(c, "failed to acquire lock")
		return
	}

	utils.JSON200(c, gin.H{"ok": true, "expires_at": expiresAt.Format(time.RFC3339)})
}

func (ctrl *Controller) ReleaseLock(c *gin.Context) {
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

	var req dto.ReleaseLockRequest
	_ = c.ShouldBindJSON(&req)

	asetID := ctrl.pickAnnotationSetID(c, req.AnnotationSetID)
	if asetID == 0 {
		utils.JSON400(c, "annotation_set_id required")
		return
	}

	if err := ctrl.Repository.LockRepo.Release(asetID, itemID, userID); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Lock] Failed to release lock for item %d: %v", itemID, err)
		utils.JSON500(c, "failed to release lock")
		return
	}

	utils.JSON200(c, gin.H{"ok": true})
}

func (ctrl *Controller) ListActiveLocks(c *gin.Context) {
	ctx := c.Request.Context()

	locks, err := ctrl.Repository.LockRepo.ListActive(time.Now().UTC())
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Lock] Failed to list active locks: %v", err)
		utils.JSON500(c, "failed to list locks")
		return
	}

	out := make([]dto.LockSummaryDTO, 0, len(locks))
	for _, l := range locks {
		out = append(out, dto.LockSummaryDTO{
			ID:              l.ID,
			AnnotationSetID: l.AnnotationSetID,
			DatasetItemID:   l.DatasetItemID,
			LockedByUserID:  l.LockedByUserID,
			ExpiresAt:       l.ExpiresAt.Format(time.RFC3339),
		})
	}
	utils.JSON200(c, out)
}
