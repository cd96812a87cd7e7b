package dto

// AcquireLockRequest is accepted in the body of POST /items/:item_id/lock.
// annotation_set_id may come from the body or the query string.
type AcquireLockRequest struct {
	AnnotationSetID uint `json:"annotation_set_id"`
	TTLSeconds      int  `json:"ttl_seconds"`
}

// ReleaseLockRequest is accepted in the body of POST /items/:item_id/unlock.
type ReleaseLockRequest struct {
	AnnotationSetID uint `json:"annotation_set_id"`
}

// LockSummaryDTO is one row of GET /locks/active.
type LockSummaryDTO struct {
	ID              uint   `json:"id"`
	AnnotationSetID uint   `json:"annotation_set_id"`
	DatasetItemID   uint   `json:"dataset_item_id"`
	LockedByUserID  uint   `json:"locked_by_user_id"`
	ExpiresAt       string `json:"expires_at"`
}
