package repository

import (
	"fmt"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/gorm"
)

type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

func (r *DatasetRepository) FindByID(id uint) (*entity.Dataset, error) {
	var dataset entity.Dataset
	if err := r.db.Where("id = ?", id).First(&dataset).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("dataset %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &dataset, nil
}

// FindInProject loads a dataset and verifies project ownership.
func (r *DatasetRepository) FindInProject(id, projectID uint) (*entity.Dataset, error) {
	var dataset entity.Dataset
	if err := r.db.Where("id = ? AND project_id = ?", id, projectID).First(&dataset).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("dataset %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &dataset, nil
}

func (r *DatasetRepository) FindItemByID(id uint) (*entity.DatasetItem, error) {
	var item entity.DatasetItem
	if err := r.db.Where("id = ?", id).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

// ListItems returns the dataset's items in ascending id order, the order the
// auto-annotate pipeline processes them in.
func (r *DatasetRepository) ListItems(datasetID uint) ([]entity.DatasetItem, error) {
	var items []entity.DatasetItem
	err := r.db.Where("dataset_id = ?", datasetID).Order("id ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemsBySplit returns the dataset's items of one split, id ascending.
func (r *DatasetRepository) ListItemsBySplit(datasetID uint, split string) ([]entity.DatasetItem, error) {
	var items []entity.DatasetItem
	err := r.db.Where("dataset_id = ? AND split = ?", datasetID, split).Order("id ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
