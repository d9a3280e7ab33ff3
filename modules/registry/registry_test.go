package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/database"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
)

func newTestRegistry(t *testing.T) *Registry {
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

	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	return NewRegistry(log, repository.NewModuleConfigRepository(db))
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register(&Manifest{Key: "a", Type: enum.ModuleTypeProvider}))
	assert.Error(t, r.Register(&Manifest{Key: "a", Type: enum.ModuleTypeProvider}))
	assert.Error(t, r.Register(&Manifest{}))
}

func TestRegistry_SyncConfigsHonorsPreEnabled(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(&Manifest{Key: "on_by_default", Type: enum.ModuleTypeAnalyzer, PreEnabled: true}))
	require.NoError(t, r.Register(&Manifest{Key: "off_by_default", Type: enum.ModuleTypeNotifier}))
	require.NoError(t, r.SyncConfigs(ctx))

	assert.True(t, r.IsEnabled(ctx, "on_by_default"))
	assert.False(t, r.IsEnabled(ctx, "off_by_default"))

	// Resync keeps operator toggles.
	require.NoError(t, r.SetEnabled(ctx, "on_by_default", false))
	require.NoError(t, r.SyncConfigs(ctx))
	assert.False(t, r.IsEnabled(ctx, "on_by_default"))
}

func TestRegistry_SetEnabledRunsHooks(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	var started, stopped int
	require.NoError(t, r.Register(&Manifest{
		Key:      "hooked",
		Type:     enum.ModuleTypeProvider,
		Startup:  func(ctx context.Context) error { started++; return nil },
		Shutdown: func(ctx context.Context) error { stopped++; return nil },
	}))
	require.NoError(t, r.SyncConfigs(ctx))

	require.NoError(t, r.SetEnabled(ctx, "hooked", true))
	assert.Equal(t, 1, started)

	// Enabling an already-enabled module is a no-op.
	require.NoError(t, r.SetEnabled(ctx, "hooked", true))
	assert.Equal(t, 1, started)

	require.NoError(t, r.SetEnabled(ctx, "hooked", false))
	assert.Equal(t, 1, stopped)

	assert.Error(t, r.SetEnabled(ctx, "missing", true))
}

func TestRegistry_HookFailureDoesNotRevertToggle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(&Manifest{
		Key:     "flaky",
		Type:    enum.ModuleTypeProvider,
		Startup: func(ctx context.Context) error { return errors.New("could not connect") },
	}))
	require.NoError(t, r.SyncConfigs(ctx))

	require.NoError(t, r.SetEnabled(ctx, "flaky", true))
	assert.True(t, r.IsEnabled(ctx, "flaky"))
}

func TestRegistry_AvailableAnalyzer(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	configured := true
	analyze := func(ctx context.Context, raw models.JSONMap) (*models.Analysis, models.JSONMap, error) {
		return nil, nil, nil
	}
	require.NoError(t, r.Register(&Manifest{
		Key:          "analyzer",
		Type:         enum.ModuleTypeAnalyzer,
		PreEnabled:   true,
		Analyze:      analyze,
		IsConfigured: func(ctx context.Context) (bool, error) { return configured, nil },
	}))
	require.NoError(t, r.SyncConfigs(ctx))

	require.NotNil(t, r.AvailableAnalyzer(ctx))

	// Unconfigured analyzers don't count.
	configured = false
	assert.Nil(t, r.AvailableAnalyzer(ctx))

	// Neither do disabled ones.
	configured = true
	require.NoError(t, r.SetEnabled(ctx, "analyzer", false))
	assert.Nil(t, r.AvailableAnalyzer(ctx))
}

func TestRegistry_StatusReport(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(&Manifest{
		Key:        "with_status",
		Name:       "With status",
		Type:       enum.ModuleTypeProvider,
		PreEnabled: true,
		Status: func(ctx context.Context) (models.JSONMap, error) {
			return models.JSONMap{"running": 3}, nil
		},
	}))
	require.NoError(t, r.Register(&Manifest{Key: "plain", Type: enum.ModuleTypeNotifier}))
	require.NoError(t, r.SyncConfigs(ctx))

	report := r.StatusReport(ctx)
	require.Len(t, report, 2)
	assert.Equal(t, "with_status", report[0].Key)
	assert.True(t, report[0].Enabled)
	assert.Equal(t, 3, report[0].Status["running"])
	assert.Nil(t, report[1].Status)
}
