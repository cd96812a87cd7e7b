package repository

import (
	"time"

	"github.com/annolab/annolab-platform/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository manages edit leases on (annotation_set_id, dataset_item_id)
// pairs. Leases expire; a client renews by re-acquiring before expiry.
type LockRepository struct {
	db *gorm.DB
}

func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Acquire grants or renews the lease for the pair and returns its expiry.
// Expired rows are reaped first; there is no background sweeper. The upsert
// is serialized by the unique index on the pair: when a live lock belongs to
// another user the conditional DO UPDATE matches no row and the call fails
// with ErrLockHeld.
func (r *LockRepository) Acquire(annotationSetID, itemID, userID uint, ttl time.Duration) (time.Time, error) {
	now := time.Now().UTC()

	if err := r.db.Where("expires_at < ?", now).Delete(&entity.AnnotationLock{}).Error; err != nil {
		return time.Time{}, err
	}

	expiresAt := now.Add(ttl)
	lock := entity.AnnotationLock{
		AnnotationSetID: annotationSetID,
		DatasetItemID:   itemID,
		LockedByUserID:  userID,
		LockedAt:        now,
		ExpiresAt:       expiresAt,
	}

	res := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "annotation_set_id"}, {Name: "dataset_item_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("annotation_locks.locked_by_user_id = ? OR annotation_locks.expires_at < ?", userID, now),
		}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"locked_by_user_id": userID,
			"locked_at":         now,
			"expires_at":        expiresAt,
		}),
	}).Create(&lock)
	if res.Error != nil {
		return time.Time{}, res.Error
	}
	if res.RowsAffected == 0 {
		return time.Time{}, ErrLockHeld
	}

	return expiresAt, nil
}

// Release deletes the pair's lock if held by the user. Idempotent: releasing
// an absent lock is not an error.
func (r *LockRepository) Release(annotationSetID, itemID, userID uint) error {
	return r.db.Where(
		"annotation_set_id = ? AND dataset_item_id = ? AND locked_by_user_id = ?",
		annotationSetID, itemID, userID,
	).Delete(&entity.AnnotationLock{}).Error
}

// IsHeldBy reports whether a live lock on the pair belongs to the user.
func (r *LockRepository) IsHeldBy(annotationSetID, itemID, userID uint, now time.Time) (bool, error) {
	return isHeldBy(r.db, annotationSetID, itemID, userID, now)
}

// isHeldBy runs the ownership check on the given handle so callers inside a
// transaction stay on the transaction's connection.
func isHeldBy(db *gorm.DB, annotationSetID, itemID, userID uint, now time.Time) (bool, error) {
	var count int64
	err := db.Model(&entity.AnnotationLock{}).Where(
		"annotation_set_id = ? AND dataset_item_id = ? AND locked_by_user_id = ? AND expires_at >= ?",
		annotationSetID, itemID, userID, now,
	).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActive returns non-expired locks, most recently acquired first.
func (r *LockRepository) ListActive(now time.Time) ([]entity.AnnotationLock, error) {
	var locks []entity.AnnotationLock
	err := r.db.Where("expires_at >= ?", now).
		Order("locked_at DESC").
		Limit(200).
		Find(&locks).Error
	if err != nil {
		return nil, err
	}
	return locks, nil
}
