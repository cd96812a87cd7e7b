package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/annolab/annolab-platform/repository"
	"github.com/annolab/annolab-platform/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const jobStreamInterval = 800 * time.Millisecond

var jobStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API is already CORS- and token-guarded
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamJob pushes the job's observable projection to the client until the
// job reaches a terminal state. A job that does not exist yet yields a
// "not found" frame instead of closing the stream: the record may be created
// moments after the client subscribes.
func (ctrl *Controller) StreamJob(c *gin.Context) {
	ctx := c.Request.Context()

	jobID := paramUint(c, "job_id")
	if jobID == 0 {
		utils.JSON400(c, "invalid job_id")
		return
	}

	conn, err := jobStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[JobStream] Upgrade failed for job %d: %v", jobID, err)
		return
	}
	defer conn.Close()

	// drain client frames so close messages are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(jobStreamInterval)
	defer ticker.Stop()

	var lastSent *jobFrame

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
		}

		proj, err := ctrl.Repository.JobRepo.FindProjection(ctx, jobID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				if err := conn.WriteJSON(gin.H{"error": "job not found"}); err != nil {
					return
				}
				continue
			}
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[JobStream] Failed to load job %d: %v", jobID, err)
			continue
		}

		frame := jobFrame{
			ID:        proj.ID,
			Status:    string(proj.Status),
			Progress:  proj.Progress,
			Message:   proj.Message,
			UpdatedAt: proj.UpdatedAt.Format(time.RFC3339),
		}
		if lastSent != nil && frame.Status == lastSent.Status &&
			frame.Progress == lastSent.Progress && frame.Message == lastSent.Message {
			continue
		}

		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		lastSent = &frame

		if proj.Status.IsTerminal() {
			return
		}
	}
}

type jobFrame struct {
	ID        uint    `json:"id"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message"`
	UpdatedAt string  `json:"updated_at"`
}
