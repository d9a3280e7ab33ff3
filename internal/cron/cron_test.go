package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/database"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/notifications"
	"github.com/parceltrace/parceltrace/services/orders"
	"github.com/parceltrace/parceltrace/services/queue"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func getConfig() *config.Config {
	return &config.Config{
		QueueConfig: &config.QueueConfig{
			TickSeconds:      5,
			RetentionSeconds: 600,
		},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := getConfig()
	log := getLogger()

	cm := NewCronManager(cfg, log, nil, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
	assert.NotNil(t, cm.jobs)
}

func TestCronManager_AddJob(t *testing.T) {
	cm := NewCronManager(getConfig(), getLogger(), nil, nil)
	c := cronv3.New(cronv3.WithSeconds())

	cm.addJob(c, "test-job", "test", 1, func(ctx context.Context) error { return nil })

	require.Len(t, cm.jobIDs, 1)
	meta := cm.Jobs()["test-job"]
	assert.Equal(t, "test", meta.Description)
	assert.Equal(t, 1, meta.IntervalSeconds)
	assert.Equal(t, "never_run", meta.LastStatus)
	assert.Nil(t, meta.LastRunAt)

	// Duplicate registration is a no-op.
	cm.addJob(c, "test-job", "test again", 2, func(ctx context.Context) error { return nil })
	assert.Len(t, cm.jobIDs, 1)
	assert.Equal(t, 1, cm.Jobs()["test-job"].IntervalSeconds)
}

func TestCronManager_RunJobRecordsMetadata(t *testing.T) {
	cm := NewCronManager(getConfig(), getLogger(), nil, nil)
	c := cronv3.New(cronv3.WithSeconds())
	cm.addJob(c, "meta-job", "records metadata", 60, func(ctx context.Context) error { return nil })

	cm.runJob("meta-job", func(ctx context.Context) error { return nil })

	meta := cm.Jobs()["meta-job"]
	require.NotNil(t, meta.LastRunAt)
	assert.WithinDuration(t, time.Now().UTC(), *meta.LastRunAt, 5*time.Second)
	assert.Equal(t, "ok", meta.LastStatus)

	cm.runJob("meta-job", func(ctx context.Context) error { return assert.AnError })
	assert.Contains(t, cm.Jobs()["meta-job"].LastStatus, "failed:")
}

// newQueueManager wires a CronManager to a real processor over an in-memory
// database, with an analyzer stub that marks everything irrelevant.
func newQueueManager(t *testing.T) (*CronManager, *repository.Repositories) {
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

	log := getLogger()
	repos := repository.InitRepositories(db)
	moduleRegistry := registry.NewRegistry(log, repos.ModuleConfigRepository)
	require.NoError(t, moduleRegistry.Register(&registry.Manifest{
		Key:        "stub_analyzer",
		Name:       "Stub analyzer",
		Type:       enum.ModuleTypeAnalyzer,
		PreEnabled: true,
		Analyze: func(ctx context.Context, raw models.JSONMap) (*models.Analysis, models.JSONMap, error) {
			return &models.Analysis{IsRelevant: false}, nil, nil
		},
	}))
	require.NoError(t, moduleRegistry.SyncConfigs(context.Background()))

	orderService := orders.NewService(log, db, repos.OrderRepository, repos.OrderStateRepository)
	notificationService := notifications.NewService(log, moduleRegistry, repos.NotificationConfigRepository)
	processor := queue.NewProcessor(log, repos, moduleRegistry, orderService, notificationService)
	retention := queue.NewRetention(log, repos)

	return NewCronManager(getConfig(), log, processor, retention), repos
}

func TestCronManager_QueueWorkerHandlesOneItemPerTick(t *testing.T) {
	cm, repos := newQueueManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repos.QueueRepository.Create(ctx, &models.QueueItem{
			UserID:     "user_1",
			Status:     enum.QueueStatusQueued,
			SourceType: enum.SourceTypeEmail,
			RawData:    models.JSONMap{"subject": fmt.Sprintf("order %d", i)},
		}))
	}

	// One tick, one item; the backlog waits for the next ticks.
	require.NoError(t, cm.runQueueWorker(ctx))
	remaining, err := repos.QueueRepository.CountQueued(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)

	require.NoError(t, cm.runQueueWorker(ctx))
	require.NoError(t, cm.runQueueWorker(ctx))
	remaining, err = repos.QueueRepository.CountQueued(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	// An empty queue is a quiet no-op.
	require.NoError(t, cm.runQueueWorker(ctx))
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(getConfig(), getLogger(), nil, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
}
