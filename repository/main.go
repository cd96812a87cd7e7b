package repository

import (
	"github.com/annolab/annolab-platform/infra"
	"gorm.io/gorm"
)

type Repository struct {
	ProjectRepo       *ProjectRepository
	DatasetRepo       *DatasetRepository
	ModelWeightRepo   *ModelWeightRepository
	AnnotationSetRepo *AnnotationSetRepository
	AnnotationRepo    *AnnotationRepository
	LockRepo          *LockRepository
	JobRepo           *JobRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = NewRepository(infra.Postgres.DB, infra.Redis)
	return repository
}

// NewRepository wires repositories over an explicit database handle. Tests
// use it with an in-memory sqlite database and no cache.
func NewRepository(db *gorm.DB, cache *infra.RedisClient) *Repository {
	locks := NewLockRepository(db)
	return &Repository{
		ProjectRepo:       NewProjectRepository(db),
		DatasetRepo:       NewDatasetRepository(db),
		ModelWeightRepo:   NewModelWeightRepository(db),
		AnnotationSetRepo: NewAnnotationSetRepository(db),
		AnnotationRepo:    NewAnnotationRepository(db, locks),
		LockRepo:          locks,
		JobRepo:           NewJobRepository(db, cache),
	}
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}
