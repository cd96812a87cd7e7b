package repository

import (
	"fmt"
	"time"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnnotationRepository struct {
	db    *gorm.DB
	locks *LockRepository
}

func NewAnnotationRepository(db *gorm.DB, locks *LockRepository) *AnnotationRepository {
	return &AnnotationRepository{db: db, locks: locks}
}

func (r *AnnotationRepository) ListForItem(itemID, annotationSetID uint) ([]entity.Annotation, error) {
	var annotations []entity.Annotation
	err := r.db.Where("dataset_item_id = ? AND annotation_set_id = ?", itemID, annotationSetID).
		Find(&annotations).Error
	if err != nil {
		return nil, err
	}
	return annotations, nil
}

// ReplaceAll atomically swaps the pair's annotations for the incoming set.
// Non-admin actors must hold a live lock on the pair. Every class reference
// must belong to the set's project; one bad reference rolls back the whole
// replace. An audit row records actor, pair and count.
func (r *AnnotationRepository) ReplaceAll(itemID, annotationSetID uint, incoming []entity.Annotation, actor *entity.User) ([]entity.Annotation, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var aset entity.AnnotationSet
		if err := tx.Where("id = ?", annotationSetID).First(&aset).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("annotation set %d: %w", annotationSetID, ErrNotFound)
			}
			return err
		}

		if actor.Role != entity.RoleAdmin {
			// the guard must read inside the transaction, and going through
			// r.db would demand a second connection while tx holds one
			held, err := isHeldBy(tx, annotationSetID, itemID, actor.ID, time.Now().UTC())
			if err != nil {
				return err
			}
			if !held {
				return ErrNoActiveLock
			}
		}

		var classes []entity.LabelClass
		if err := tx.Where("project_id = ?", aset.ProjectID).Find(&classes).Error; err != nil {
			return err
		}
		validClass := make(map[uint]bool, len(classes))
		for _, c := range classes {
			validClass[c.ID] = true
		}
		for _, a := range incoming {
			if !validClass[a.ClassID] {
				return fmt.Errorf("class_id %d: %w", a.ClassID, ErrInvalidClass)
			}
		}

		if err := tx.Where("dataset_item_id = ? AND annotation_set_id = ?", itemID, annotationSetID).
			Delete(&entity.Annotation{}).Error; err != nil {
			return err
		}

		for i := range incoming {
			incoming[i].ID = 0
			incoming[i].AnnotationSetID = annotationSetID
			incoming[i].DatasetItemID = itemID
			if incoming[i].Attributes == nil {
				incoming[i].Attributes = datatypes.JSONMap{}
			}
		}
		if len(incoming) > 0 {
			if err := tx.Create(&incoming).Error; err != nil {
				return err
			}
		}

		userID := actor.ID
		return tx.Create(&entity.AuditLog{
			ProjectID:  aset.ProjectID,
			UserID:     &userID,
			Action:     "annotation.replace",
			EntityType: "dataset_item",
			EntityID:   itemID,
			Details: datatypes.JSONMap{
				"annotation_set_id": annotationSetID,
				"count":             len(incoming),
			},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return r.ListForItem(itemID, annotationSetID)
}

// ReplaceGenerated swaps the pair's annotations without the lock or actor
// checks. Pipelines write into sets they created themselves, so no user can
// hold a lock there yet.
func (r *AnnotationRepository) ReplaceGenerated(itemID, annotationSetID uint, incoming []entity.Annotation) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_item_id = ? AND annotation_set_id = ?", itemID, annotationSetID).
			Delete(&entity.Annotation{}).Error; err != nil {
			return err
		}
		for i := range incoming {
			incoming[i].ID = 0
			incoming[i].AnnotationSetID = annotationSetID
			incoming[i].DatasetItemID = itemID
			if incoming[i].Attributes == nil {
				incoming[i].Attributes = datatypes.JSONMap{}
			}
		}
		if len(incoming) == 0 {
			return nil
		}
		return tx.Create(&incoming).Error
	})
}
