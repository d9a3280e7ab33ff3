package imapwatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/database"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/services/mailparse"
)

func newIntakeRepositories(t *testing.T) (*repository.Repositories, *gorm.DB) {
	t.Helper()

	dbConfig := &config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:   "SILENT",
	}
	db, err := database.Open(dbConfig)
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(dbConfig, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return repository.InitRepositories(db), db
}

func TestEnqueueParsed_RecordsProvenance(t *testing.T) {
	repos, db := newIntakeRepositories(t)
	ctx := context.Background()

	date := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	msg := &mailparse.ParsedMessage{
		MessageID: "abc@shop.example",
		Subject:   "Your order has shipped",
		Sender:    "Example Shop <orders@shop.example>",
		Body:      "Order A-1001 is on its way.",
		Date:      &date,
	}
	route := &RouteResult{UserID: "user_1", Source: enum.MailSourceUserMailbox}

	enqueued, err := EnqueueParsed(ctx, repos.SeenMessageRepository, route, msg, 42, "acct_mailbox1", "INBOX")
	require.NoError(t, err)
	assert.True(t, enqueued)

	var seen models.SeenMessage
	require.NoError(t, db.First(&seen).Error)
	require.NotNil(t, seen.MailboxID)
	assert.Equal(t, "acct_mailbox1", *seen.MailboxID)
	assert.Equal(t, "INBOX", seen.FolderPath)
	assert.Equal(t, uint32(42), seen.SourceUID)

	var item models.QueueItem
	require.NoError(t, db.First(&item).Error)
	assert.Equal(t, enum.QueueStatusQueued, item.Status)
	assert.Equal(t, enum.SourceTypeEmail, item.SourceType)
	assert.Equal(t, "imap:acct_mailbox1/INBOX", item.SourceInfo)

	require.NotNil(t, seen.QueueItemID)
	assert.Equal(t, item.ID, *seen.QueueItemID)

	assert.Equal(t, "abc@shop.example", item.RawData["message_id"])
	assert.Equal(t, "Your order has shipped", item.RawData["subject"])
	assert.Equal(t, float64(42), item.RawData["email_uid"])
	assert.Equal(t, "2026-08-24T10:30:00Z", item.RawData["email_date"])
}

func TestEnqueueParsed_DuplicateReportsFalse(t *testing.T) {
	repos, db := newIntakeRepositories(t)
	ctx := context.Background()

	msg := &mailparse.ParsedMessage{MessageID: "dup@shop.example", Subject: "copy"}
	route := &RouteResult{UserID: "user_1", Source: enum.MailSourceGlobalMailbox}

	enqueued, err := EnqueueParsed(ctx, repos.SeenMessageRepository, route, msg, 10, "gmail_shared", "INBOX")
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = EnqueueParsed(ctx, repos.SeenMessageRepository, route, msg, 11, "gmail_shared", "INBOX")
	require.NoError(t, err)
	assert.False(t, enqueued)

	var count int64
	require.NoError(t, db.Model(&models.QueueItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
