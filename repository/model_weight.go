package repository

import (
	"fmt"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/gorm"
)

type ModelWeightRepository struct {
	db *gorm.DB
}

func NewModelWeightRepository(db *gorm.DB) *ModelWeightRepository {
	return &ModelWeightRepository{db: db}
}

// FindInProject loads a model weight and verifies project ownership.
func (r *ModelWeightRepository) FindInProject(id, projectID uint) (*entity.ModelWeight, error) {
	var mw entity.ModelWeight
	if err := r.db.Where("id = ? AND project_id = ?", id, projectID).First(&mw).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("model %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &mw, nil
}

func (r *ModelWeightRepository) Create(mw *entity.ModelWeight) error {
	return r.db.Create(mw).Error
}
