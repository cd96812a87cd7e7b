package controller

import (
	"strconv"

	"github.com/annolab/annolab-platform/config"
	"github.com/annolab/annolab-platform/infra"
	"github.com/annolab/annolab-platform/repository"
	"github.com/gin-gonic/gin"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
	}
}

// paramUint parses a positive integer path parameter; 0 means invalid.
func paramUint(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
