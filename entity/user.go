package entity

import "time"

// Role values a user can carry. Admin bypasses the annotation lock guard.
const (
	RoleAdmin     = "admin"
	RoleReviewer  = "reviewer"
	RoleAnnotator = "annotator"
	RoleViewer    = "viewer"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(320);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(200)"`
	Role      string    `json:"role" gorm:"type:varchar(32);not null;default:'annotator'"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
