package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
)

func seenAndItem(messageID, userID string) (*models.SeenMessage, *models.QueueItem) {
	seen := &models.SeenMessage{
		MessageID: messageID,
		UserID:    userID,
		Source:    enum.MailSourceUserMailbox,
	}
	item := &models.QueueItem{
		UserID:     userID,
		Status:     enum.QueueStatusQueued,
		SourceType: enum.SourceTypeEmail,
		RawData:    models.JSONMap{"message_id": messageID, "subject": "your order shipped"},
	}
	return seen, item
}

func TestSeenMessageRepository_CheckDedupAndEnqueue(t *testing.T) {
	repos, db := newTestRepositories(t)
	ctx := context.Background()

	seen, item := seenAndItem("<abc@shop.example>", "user_1")
	enqueued, err := repos.SeenMessageRepository.CheckDedupAndEnqueue(ctx, seen, item)
	require.NoError(t, err)
	assert.True(t, enqueued)

	var queueCount int64
	require.NoError(t, db.Model(&models.QueueItem{}).Count(&queueCount).Error)
	assert.Equal(t, int64(1), queueCount)

	// The seen marker points back at the queue item it produced.
	require.NotNil(t, seen.QueueItemID)
	assert.Equal(t, item.ID, *seen.QueueItemID)

	// Same message id again: silently skipped, nothing enqueued.
	seen2, item2 := seenAndItem("<abc@shop.example>", "user_1")
	enqueued, err = repos.SeenMessageRepository.CheckDedupAndEnqueue(ctx, seen2, item2)
	require.NoError(t, err)
	assert.False(t, enqueued)

	require.NoError(t, db.Model(&models.QueueItem{}).Count(&queueCount).Error)
	assert.Equal(t, int64(1), queueCount)

	// Dedup is global across users: another user's copy of the same message
	// id is also skipped.
	seen3, item3 := seenAndItem("<abc@shop.example>", "user_2")
	enqueued, err = repos.SeenMessageRepository.CheckDedupAndEnqueue(ctx, seen3, item3)
	require.NoError(t, err)
	assert.False(t, enqueued)
}

func TestSeenMessageRepository_IsSeen(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	seenBefore, err := repos.SeenMessageRepository.IsSeen(ctx, "<x@y>")
	require.NoError(t, err)
	assert.False(t, seenBefore)

	seen, item := seenAndItem("<x@y>", "user_1")
	_, err = repos.SeenMessageRepository.CheckDedupAndEnqueue(ctx, seen, item)
	require.NoError(t, err)

	seenAfter, err := repos.SeenMessageRepository.IsSeen(ctx, "<x@y>")
	require.NoError(t, err)
	assert.True(t, seenAfter)
}
