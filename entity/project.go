package entity

import "time"

type Project struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(200);uniqueIndex;not null"`
	TaskType  string    `json:"task_type" gorm:"type:varchar(32);not null;default:'detection'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type LabelClass struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ProjectID  uint   `json:"project_id" gorm:"not null;index;uniqueIndex:uq_project_classname"`
	Name       string `json:"name" gorm:"type:varchar(128);not null;uniqueIndex:uq_project_classname"`
	Color      string `json:"color" gorm:"type:varchar(16);default:'#22c55e'"`
	OrderIndex int    `json:"order_index" gorm:"default:0"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}
