package entity

import (
	"time"

	"gorm.io/datatypes"
)

type ModelWeight struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	ProjectID  uint              `json:"project_id" gorm:"not null;index"`
	Name       string            `json:"name" gorm:"type:varchar(200);not null"`
	Framework  string            `json:"framework" gorm:"type:varchar(32);not null;default:'ultralytics'"`
	RelPath    string            `json:"rel_path" gorm:"type:varchar(512);not null"` // object key in storage
	ClassNames datatypes.JSONMap `json:"class_names" gorm:"type:jsonb"`              // index -> name
	Meta       datatypes.JSONMap `json:"meta" gorm:"type:jsonb"`
	UploadedAt time.Time         `json:"uploaded_at" gorm:"autoCreateTime"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}
