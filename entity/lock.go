package entity

import "time"

// AnnotationLock is a lease: exclusive, time-bounded edit ownership over one
// (annotation_set_id, dataset_item_id) pair. The unique index serializes
// concurrent acquisitions at the storage layer.
type AnnotationLock struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	AnnotationSetID uint      `json:"annotation_set_id" gorm:"not null;index;uniqueIndex:uq_lock_item_set"`
	DatasetItemID   uint      `json:"dataset_item_id" gorm:"not null;index;uniqueIndex:uq_lock_item_set"`
	LockedByUserID  uint      `json:"locked_by_user_id" gorm:"not null;index"`
	LockedAt        time.Time `json:"locked_at" gorm:"not null"`
	ExpiresAt       time.Time `json:"expires_at" gorm:"not null;index"`
}
