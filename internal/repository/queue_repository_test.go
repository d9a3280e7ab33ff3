package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/utils"
)

func createQueueItem(t *testing.T, db *gorm.DB, userID string, status enum.QueueStatus, createdAt time.Time) *models.QueueItem {
	t.Helper()
	item := &models.QueueItem{
		UserID:     userID,
		Status:     status,
		SourceType: enum.SourceTypeEmail,
		RawData:    models.JSONMap{"subject": "test"},
	}
	require.NoError(t, db.Create(item).Error)
	require.NoError(t, db.Model(item).UpdateColumn("created_at", createdAt).Error)
	item.CreatedAt = createdAt
	return item
}

func TestQueueRepository_ClaimNext_FIFO(t *testing.T) {
	repos, db := newTestRepositories(t)
	ctx := context.Background()

	now := utils.Now()
	second := createQueueItem(t, db, "user_1", enum.QueueStatusQueued, now)
	first := createQueueItem(t, db, "user_1", enum.QueueStatusQueued, now.Add(-time.Minute))

	claimed, err := repos.QueueRepository.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, enum.QueueStatusProcessing, claimed.Status)

	claimed2, err := repos.QueueRepository.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed2)
	assert.Equal(t, second.ID, claimed2.ID)

	// Queue exhausted.
	claimed3, err := repos.QueueRepository.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed3)
}

func TestQueueRepository_TerminalStates(t *testing.T) {
	repos, db := newTestRepositories(t)
	ctx := context.Background()

	item := createQueueItem(t, db, "user_1", enum.QueueStatusProcessing, utils.Now())
	orderID := "ordr_test"
	require.NoError(t, repos.QueueRepository.MarkCompleted(ctx, item.ID, &orderID))

	stored, err := repos.QueueRepository.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QueueStatusCompleted, stored.Status)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, orderID, *stored.OrderID)
	assert.NotNil(t, stored.ProcessedAt)

	failed := createQueueItem(t, db, "user_1", enum.QueueStatusProcessing, utils.Now())
	require.NoError(t, repos.QueueRepository.MarkFailed(ctx, failed.ID, "analyzer exploded"))

	stored, err = repos.QueueRepository.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QueueStatusFailed, stored.Status)
	assert.Equal(t, "analyzer exploded", stored.ErrorMessage)
}

func TestQueueRepository_RetryClone(t *testing.T) {
	repos, db := newTestRepositories(t)
	ctx := context.Background()

	failed := createQueueItem(t, db, "user_1", enum.QueueStatusFailed, utils.Now())

	clone, err := repos.QueueRepository.RetryClone(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.QueueStatusQueued, clone.Status)
	assert.Equal(t, failed.UserID, clone.UserID)
	assert.Equal(t, failed.RawData["subject"], clone.RawData["subject"])
	require.NotNil(t, clone.ClonedFromID)
	assert.Equal(t, failed.ID, *clone.ClonedFromID)

	// Only failed items can be retried.
	completed := createQueueItem(t, db, "user_1", enum.QueueStatusCompleted, utils.Now())
	_, err = repos.QueueRepository.RetryClone(ctx, completed.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQueueRepository_DeleteOlderThan(t *testing.T) {
	repos, db := newTestRepositories(t)
	ctx := context.Background()

	old := utils.Now().Add(-60 * 24 * time.Hour)
	createQueueItem(t, db, "user_1", enum.QueueStatusCompleted, old)
	createQueueItem(t, db, "user_1", enum.QueueStatusFailed, old)
	// A row that never got processed ages out just the same.
	staleQueued := createQueueItem(t, db, "user_1", enum.QueueStatusQueued, old)
	recent := createQueueItem(t, db, "user_1", enum.QueueStatusCompleted, utils.Now())

	deleted, err := repos.QueueRepository.DeleteOlderThan(ctx, utils.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = repos.QueueRepository.GetByID(ctx, staleQueued.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repos.QueueRepository.GetByID(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestQueueRepository_EnforcePerUserCap(t *testing.T) {
	repos, db := newTestRepositories(t)
	ctx := context.Background()

	base := utils.Now().Add(-time.Hour)
	var oldest *models.QueueItem
	for i := 0; i < 4; i++ {
		item := createQueueItem(t, db, "user_1", enum.QueueStatusCompleted, base.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			oldest = item
		}
	}
	// Every status counts against the cap.
	createQueueItem(t, db, "user_1", enum.QueueStatusQueued, base.Add(5*time.Minute))
	// Under the cap, untouched.
	createQueueItem(t, db, "user_2", enum.QueueStatusCompleted, base)

	deleted, err := repos.QueueRepository.EnforcePerUserCap(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// The oldest rows go first.
	_, err = repos.QueueRepository.GetByID(ctx, oldest.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var remaining int64
	require.NoError(t, db.Model(&models.QueueItem{}).Where("user_id = ?", "user_1").Count(&remaining).Error)
	assert.Equal(t, int64(3), remaining)
}
