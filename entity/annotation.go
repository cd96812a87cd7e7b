package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AnnotationSet sources.
const (
	SetSourceManual = "manual"
	SetSourceAuto   = "auto"
	SetSourceTrain  = "train"
	SetSourceImport = "import"
)

type AnnotationSet struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	ProjectID     uint              `json:"project_id" gorm:"not null;index"`
	Name          string            `json:"name" gorm:"type:varchar(200);not null;default:'default'"`
	Source        string            `json:"source" gorm:"type:varchar(32);not null;default:'manual'"`
	ModelWeightID *uint             `json:"model_weight_id"`
	Params        datatypes.JSONMap `json:"params" gorm:"type:jsonb"` // class_mapping, conf/iou, etc
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

type Annotation struct {
	ID              uint `json:"id" gorm:"primaryKey"`
	AnnotationSetID uint `json:"annotation_set_id" gorm:"not null;index"`
	DatasetItemID   uint `json:"dataset_item_id" gorm:"not null;index"`
	ClassID         uint `json:"class_id" gorm:"not null;index"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`

	Confidence *float64          `json:"confidence"`
	Approved   bool              `json:"approved" gorm:"default:false"`
	Attributes datatypes.JSONMap `json:"attributes" gorm:"type:jsonb"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	AnnotationSet *AnnotationSet `json:"annotation_set,omitempty" gorm:"foreignKey:AnnotationSetID;constraint:OnDelete:CASCADE"`
}
