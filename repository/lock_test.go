package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/annolab/annolab-platform/entity"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireIsExclusive(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)

	item := f.items[0].ID

	_, err := locks.Acquire(f.aset.ID, item, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	_, err = locks.Acquire(f.aset.ID, item, f.reviewer.ID, time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	// a different pair is independent
	_, err = locks.Acquire(f.aset.ID, f.items[1].ID, f.reviewer.ID, time.Minute)
	require.NoError(t, err)
}

func TestLockAcquireRenewsForOwner(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)

	item := f.items[0].ID

	first, err := locks.Acquire(f.aset.ID, item, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	second, err := locks.Acquire(f.aset.ID, item, f.annotator.ID, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, second.After(first))

	// renewal updates the single row instead of stacking a second one
	var count int64
	require.NoError(t, db.Model(&entity.AnnotationLock{}).
		Where("annotation_set_id = ? AND dataset_item_id = ?", f.aset.ID, item).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestLockAcquireReapsExpired(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)

	item := f.items[0].ID

	_, err := locks.Acquire(f.aset.ID, item, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	// backdate the lease past its expiry
	require.NoError(t, db.Model(&entity.AnnotationLock{}).
		Where("annotation_set_id = ? AND dataset_item_id = ?", f.aset.ID, item).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	_, err = locks.Acquire(f.aset.ID, item, f.reviewer.ID, time.Minute)
	require.NoError(t, err)

	held, err := locks.IsHeldBy(f.aset.ID, item, f.reviewer.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, held)
}

func TestLockAcquireConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)

	item := f.items[0].ID
	const contenders = 8

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// user ids just need to differ per goroutine
			_, errs[i] = locks.Acquire(f.aset.ID, item, uint(1000+i), time.Minute)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, ErrLockHeld)
		}
	}
	require.Equal(t, 1, winners)
}

func TestLockReleaseIsIdempotentAndOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)

	item := f.items[0].ID

	_, err := locks.Acquire(f.aset.ID, item, f.annotator.ID, time.Minute)
	require.NoError(t, err)

	// someone else's release does not disturb the lease
	require.NoError(t, locks.Release(f.aset.ID, item, f.reviewer.ID))
	held, err := locks.IsHeldBy(f.aset.ID, item, f.annotator.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, locks.Release(f.aset.ID, item, f.annotator.ID))
	held, err = locks.IsHeldBy(f.aset.ID, item, f.annotator.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, held)

	// releasing an absent lock is not an error
	require.NoError(t, locks.Release(f.aset.ID, item, f.annotator.ID))
}

func TestLockListActiveSkipsExpired(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	locks := NewLockRepository(db)

	_, err := locks.Acquire(f.aset.ID, f.items[0].ID, f.annotator.ID, time.Minute)
	require.NoError(t, err)
	_, err = locks.Acquire(f.aset.ID, f.items[1].ID, f.reviewer.ID, time.Minute)
	require.NoError(t, err)

	require.NoError(t, db.Model(&entity.AnnotationLock{}).
		Where("dataset_item_id = ?", f.items[0].ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	active, err := locks.ListActive(time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, f.items[1].ID, active[0].DatasetItemID)
	require.Equal(t, f.reviewer.ID, active[0].LockedByUserID)
}
