package entity

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	ProjectID  uint              `json:"project_id" gorm:"not null;index"`
	UserID     *uint             `json:"user_id" gorm:"index"`
	Action     string            `json:"action" gorm:"type:varchar(64);not null"` // e.g. annotation.replace
	EntityType string            `json:"entity_type" gorm:"type:varchar(64);not null"`
	EntityID   uint              `json:"entity_id"`
	Details    datatypes.JSONMap `json:"details" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime"`
}
