package repository

import (
	"fmt"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/gorm"
)

type AnnotationSetRepository struct {
	db *gorm.DB
}

func NewAnnotationSetRepository(db *gorm.DB) *AnnotationSetRepository {
	return &AnnotationSetRepository{db: db}
}

func (r *AnnotationSetRepository) FindByID(id uint) (*entity.AnnotationSet, error) {
	var aset entity.AnnotationSet
	if err := r.db.Where("id = ?", id).First(&aset).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("annotation set %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &aset, nil
}

func (r *AnnotationSetRepository) Create(aset *entity.AnnotationSet) error {
	return r.db.Create(aset).Error
}

// GetOrCreateDefault returns the project's oldest annotation set, creating a
// manual "default" set when the project has none yet.
func (r *AnnotationSetRepository) GetOrCreateDefault(projectID uint) (*entity.AnnotationSet, error) {
	var aset entity.AnnotationSet
	err := r.db.Where("project_id = ?", projectID).Order("id ASC").First(&aset).Error
	if err == nil {
		return &aset, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	aset = entity.AnnotationSet{
		ProjectID: projectID,
		Name:      "default",
		Source:    entity.SetSourceManual,
	}
	if err := r.db.Create(&aset).Error; err != nil {
		return nil, err
	}
	return &aset, nil
}
