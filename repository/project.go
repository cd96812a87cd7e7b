package repository

import (
	"fmt"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) FindByID(id uint) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.Where("id = ?", id).First(&project).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &project, nil
}

// ListClasses returns the project's label classes in display order.
func (r *ProjectRepository) ListClasses(projectID uint) ([]entity.LabelClass, error) {
	var classes []entity.LabelClass
	err := r.db.Where("project_id = ?", projectID).
		Order("order_index ASC, id ASC").
		Find(&classes).Error
	if err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *ProjectRepository) FindUserByID(id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}
