package repository

import (
	"testing"

	"github.com/annolab/annolab-platform/entity"
	"github.com/annolab/annolab-platform/infra"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// one connection keeps sqlite happy under concurrent acquires
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, infra.AutoMigrate(db))
	return db
}

// fixture holds a minimal seeded project: two classes, one dataset with two
// items, one annotation set, one admin and two annotators.
type fixture struct {
	db *gorm.DB

	project   entity.Project
	classes   []entity.LabelClass
	dataset   entity.Dataset
	items     []entity.DatasetItem
	aset      entity.AnnotationSet
	admin     entity.User
	annotator entity.User
	reviewer  entity.User
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	f := fixture{db: db}

	f.project = entity.Project{Name: "street-scenes", TaskType: "detection"}
	require.NoError(t, db.Create(&f.project).Error)

	f.classes = []entity.LabelClass{
		{ProjectID: f.project.ID, Name: "person", OrderIndex: 0},
		{ProjectID: f.project.ID, Name: "car", OrderIndex: 1},
	}
	require.NoError(t, db.Create(&f.classes).Error)

	f.dataset = entity.Dataset{ProjectID: f.project.ID, Name: "cam-01"}
	require.NoError(t, db.Create(&f.dataset).Error)

	f.items = []entity.DatasetItem{
		{DatasetID: f.dataset.ID, RelPath: "datasets/cam-01/0001.jpg", FileName: "0001.jpg", Width: 1920, Height: 1080, Split: entity.SplitTrain},
		{DatasetID: f.dataset.ID, RelPath: "datasets/cam-01/0002.jpg", FileName: "0002.jpg", Width: 1920, Height: 1080, Split: entity.SplitVal},
	}
	require.NoError(t, db.Create(&f.items).Error)

	f.aset = entity.AnnotationSet{ProjectID: f.project.ID, Name: "default", Source: entity.SetSourceManual}
	require.NoError(t, db.Create(&f.aset).Error)

	f.admin = entity.User{Email: "admin@example.com", Name: "admin", Role: entity.RoleAdmin, IsActive: true}
	f.annotator = entity.User{Email: "anna@example.com", Name: "anna", Role: entity.RoleAnnotator, IsActive: true}
	f.reviewer = entity.User{Email: "rei@example.com", Name: "rei", Role: entity.RoleReviewer, IsActive: true}
	require.NoError(t, db.Create(&f.admin).Error)
	require.NoError(t, db.Create(&f.annotator).Error)
	require.NoError(t, db.Create(&f.reviewer).Error)

	return f
}
