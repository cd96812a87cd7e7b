package routes

import (
	"github.com/annolab/annolab-platform/http/controller"
	middlewares "github.com/annolab/annolab-platform/http/middleware"
	"github.com/gin-gonic/gin"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/api/v1/anno")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		itemRoutes := apiRoutes.Group("/items")
		{
			itemRoutes.POST("/:item_id/lock", ctrl.AcquireLock)
			itemRoutes.POST("/:item_id/unlock", ctrl.ReleaseLock)
			itemRoutes.GET("/:item_id/annotations", ctrl.GetAnnotations)
			itemRoutes.PUT("/:item_id/annotations", ctrl.ReplaceAnnotations)
		}

		apiRoutes.GET("/locks/active", ctrl.ListActiveLocks)

		projectRoutes := apiRoutes.Group("/projects")
		{
			projectRoutes.POST("/:project_id/jobs/auto-annotate", ctrl.StartAutoAnnotate)
			projectRoutes.POST("/:project_id/jobs/train-yolo", ctrl.StartTrainYolo)
			projectRoutes.GET("/:project_id/jobs", ctrl.ListProjectJobs)
		}

		apiRoutes.GET("/jobs/:job_id", ctrl.GetJob)
		apiRoutes.GET("/ws/jobs/:job_id", ctrl.StreamJob)
	}
	return r
}
