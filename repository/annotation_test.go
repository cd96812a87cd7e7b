package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/annolab/annolab-platform/entity"
	"github.com/stretchr/testify/require"
)

func TestReplaceAllRequiresLiveLock(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)
	annotations := NewAnnotationRepository(db, locks)

	incoming := []entity.Annotation{
		{ClassID: f.classes[0].ID, X: 10, Y: 10, W: 50, H: 80},
	}

	_, err := annotations.ReplaceAll(f.items[0].ID, f.aset.ID, incoming, &f.annotator)
	require.ErrorIs(t, err, ErrNoActiveLock)

	_, err = locks.Acquire(f.aset.ID, f.items[0].ID, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	saved, err := annotations.ReplaceAll(f.items[0].ID, f.aset.ID, incoming, &f.annotator)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, f.classes[0].ID, saved[0].ClassID)
}

func TestReplaceAllLockHeldByAnotherUser(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)
	annotations := NewAnnotationRepository(db, locks)

	_, err := locks.Acquire(f.aset.ID, f.items[0].ID, f.reviewer.ID, time.Minute)
	require.NoError(t, err)

	_, err = annotations.ReplaceAll(f.items[0].ID, f.aset.ID, nil, &f.annotator)
	require.ErrorIs(t, err, ErrNoActiveLock)
}

func TestReplaceAllAdminBypassesLock(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)
	annotations := NewAnnotationRepository(db, locks)

	// even a lock held by someone else does not stop an admin
	_, err := locks.Acquire(f.aset.ID, f.items[0].ID, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	saved, err := annotations.ReplaceAll(f.items[0].ID, f.aset.ID, []entity.Annotation{
		{ClassID: f.classes[1].ID, X: 1, Y: 2, W: 3, H: 4},
	}, &f.admin)
	require.NoError(t, err)
	require.Len(t, saved, 1)
}

func TestReplaceAllRejectsForeignClassAtomically(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)
	annotations := NewAnnotationRepository(db, locks)

	_, err := locks.Acquire(f.aset.ID, f.items[0].ID, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	existing, err := annotations.ReplaceAll(f.items[0].ID, f.aset.ID, []entity.Annotation{
		{ClassID: f.classes[0].ID, X: 5, Y: 5, W: 20, H: 20},
	}, &f.annotator)
	require.NoError(t, err)
	require.Len(t, existing, 1)

	// one bad class reference rolls the whole replace back
	_, err = annotations.ReplaceAll(f.items[0].ID, f.aset.ID, []entity.Annotation{
		{ClassID: f.classes[1].ID, X: 1, Y: 1, W: 2, H: 2},
		{ClassID: 99999, X: 3, Y: 3, W: 4, H: 4},
	}, &f.annotator)
	require.ErrorIs(t, err, ErrInvalidClass)

	after, err := annotations.ListForItem(f.items[0].ID, f.aset.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, f.classes[0].ID, after[0].ClassID)
}

func TestReplaceAllWritesAuditRow(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)
	annotations := NewAnnotationRepository(db, locks)

	_, err := locks.Acquire(f.aset.ID, f.items[0].ID, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	_, err = annotations.ReplaceAll(f.items[0].ID, f.aset.ID, []entity.Annotation{
		{ClassID: f.classes[0].ID, X: 1, Y: 1, W: 2, H: 2},
		{ClassID: f.classes[1].ID, X: 3, Y: 3, W: 4, H: 4},
	}, &f.annotator)
	require.NoError(t, err)

	var logs []entity.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "annotation.replace", logs[0].Action)
	require.Equal(t, f.items[0].ID, logs[0].EntityID)
	require.NotNil(t, logs[0].UserID)
	require.Equal(t, f.annotator.ID, *logs[0].UserID)
	// JSONMap columns scan numbers back as json.Number
	require.Equal(t, json.Number("2"), logs[0].Details["count"])
}

func TestReplaceAllUnknownSet(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	annotations := NewAnnotationRepository(db, NewLockRepository(db))

	_, err := annotations.ReplaceAll(f.items[0].ID, 99999, nil, &f.admin)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceGeneratedSwapsWithoutLock(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	annotations := NewAnnotationRepository(db, NewLockRepository(db))

	require.NoError(t, annotations.ReplaceGenerated(f.items[0].ID, f.aset.ID, []entity.Annotation{
		{ClassID: f.classes[0].ID, X: 1, Y: 1, W: 2, H: 2},
	}))
	require.NoError(t, annotations.ReplaceGenerated(f.items[0].ID, f.aset.ID, []entity.Annotation{
		{ClassID: f.classes[1].ID, X: 5, Y: 5, W: 6, H: 6},
	}))

	after, err := annotations.ListForItem(f.items[0].ID, f.aset.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, f.classes[1].ID, after[0].ClassID)
}
