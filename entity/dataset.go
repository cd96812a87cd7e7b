package entity

import "time"

// Dataset split values for DatasetItem.Split.
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

type Dataset struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"not null;index"`
	Name      string    `json:"name" gorm:"type:varchar(200);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

type DatasetItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	DatasetID uint      `json:"dataset_id" gorm:"not null;index"`
	RelPath   string    `json:"rel_path" gorm:"type:varchar(512);not null"` // object key in storage
	FileName  string    `json:"file_name" gorm:"type:varchar(256);not null"`
	SHA256    string    `json:"sha256" gorm:"type:varchar(64);index"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Split     string    `json:"split" gorm:"type:varchar(16);not null;default:'train'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Dataset *Dataset `json:"dataset,omitempty" gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}
