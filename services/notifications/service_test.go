package notifications

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/database"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/modules/registry"
)

type capturingNotifier struct {
	mu     sync.Mutex
	calls  []string
	failOn string
}

func (n *capturingNotifier) notify(key string) func(ctx context.Context, event *models.OrderEvent, config *models.NotificationConfig) error {
	return func(ctx context.Context, event *models.OrderEvent, config *models.NotificationConfig) error {
		n.mu.Lock()
		defer n.mu.Unlock()
		if key == n.failOn {
			return errors.New("delivery failed")
		}
		n.calls = append(n.calls, fmt.Sprintf("%s:%s:%s", key, config.UserID, event.Event))
		return nil
	}
}

func (n *capturingNotifier) delivered() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func newTestNotifications(t *testing.T) (*Service, *registry.Registry, *repository.Repositories, *capturingNotifier) {
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

	repos := repository.InitRepositories(db)
	moduleRegistry := registry.NewRegistry(log, repos.ModuleConfigRepository)

	sink := &capturingNotifier{}
	require.NoError(t, moduleRegistry.Register(&registry.Manifest{
		Key:        "stub_webhook",
		Type:       enum.ModuleTypeNotifier,
		PreEnabled: true,
		Notify:     sink.notify("stub_webhook"),
	}))
	require.NoError(t, moduleRegistry.Register(&registry.Manifest{
		Key:        "stub_email",
		Type:       enum.ModuleTypeNotifier,
		PreEnabled: true,
		Notify:     sink.notify("stub_email"),
	}))
	require.NoError(t, moduleRegistry.SyncConfigs(context.Background()))

	return NewService(log, moduleRegistry, repos.NotificationConfigRepository), moduleRegistry, repos, sink
}

func subscribe(t *testing.T, repos *repository.Repositories, userID, notifierKey string, events ...string) *models.NotificationConfig {
	t.Helper()
	subscription := &models.NotificationConfig{
		UserID:      userID,
		NotifierKey: notifierKey,
		Enabled:     true,
		Events:      pq.StringArray(events),
	}
	require.NoError(t, repos.NotificationConfigRepository.Save(context.Background(), subscription))
	return subscription
}

func deliveredEvent(userID string) *models.OrderEvent {
	return &models.OrderEvent{
		Event:  enum.NotificationPackageDelivered,
		UserID: userID,
		Order:  &models.Order{ID: "ordr_1", UserID: userID, Status: enum.OrderStatusDelivered},
	}
}

func TestNotifyUser_FansOutToAllSubscribedNotifiers(t *testing.T) {
	service, _, repos, sink := newTestNotifications(t)

	subscribe(t, repos, "user_1", "stub_webhook")
	subscribe(t, repos, "user_1", "stub_email")

	service.NotifyUser(context.Background(), deliveredEvent("user_1"))

	calls := sink.delivered()
	assert.Len(t, calls, 2)
	assert.Contains(t, calls, "stub_webhook:user_1:package_delivered")
	assert.Contains(t, calls, "stub_email:user_1:package_delivered")
}

func TestNotifyUser_EmptyEventsListReceivesEverything(t *testing.T) {
	service, _, repos, sink := newTestNotifications(t)

	subscribe(t, repos, "user_1", "stub_webhook")

	service.NotifyUser(context.Background(), &models.OrderEvent{
		Event:  enum.NotificationNewOrder,
		UserID: "user_1",
		Order:  &models.Order{ID: "ordr_1", UserID: "user_1"},
	})

	assert.Equal(t, []string{"stub_webhook:user_1:new_order"}, sink.delivered())
}

func TestNotifyUser_EventFilterSkipsUnwantedEvents(t *testing.T) {
	service, _, repos, sink := newTestNotifications(t)

	subscribe(t, repos, "user_1", "stub_webhook", "new_order")

	service.NotifyUser(context.Background(), deliveredEvent("user_1"))

	assert.Empty(t, sink.delivered())
}

func TestNotifyUser_DisabledModuleIsSkipped(t *testing.T) {
	service, moduleRegistry, repos, sink := newTestNotifications(t)
	ctx := context.Background()

	subscribe(t, repos, "user_1", "stub_webhook")
	subscribe(t, repos, "user_1", "stub_email")
	require.NoError(t, moduleRegistry.SetEnabled(ctx, "stub_email", false))

	service.NotifyUser(ctx, deliveredEvent("user_1"))

	assert.Equal(t, []string{"stub_webhook:user_1:package_delivered"}, sink.delivered())
}

func TestNotifyUser_DisabledSubscriptionIsSkipped(t *testing.T) {
	service, _, repos, sink := newTestNotifications(t)
	ctx := context.Background()

	subscription := subscribe(t, repos, "user_1", "stub_webhook")
	subscription.Enabled = false
	require.NoError(t, repos.NotificationConfigRepository.Save(ctx, subscription))

	service.NotifyUser(ctx, deliveredEvent("user_1"))

	assert.Empty(t, sink.delivered())
}

func TestNotifyUser_FailingNotifierDoesNotBlockOthers(t *testing.T) {
	service, _, repos, sink := newTestNotifications(t)
	sink.failOn = "stub_webhook"

	subscribe(t, repos, "user_1", "stub_webhook")
	subscribe(t, repos, "user_1", "stub_email")

	service.NotifyUser(context.Background(), deliveredEvent("user_1"))

	assert.Equal(t, []string{"stub_email:user_1:package_delivered"}, sink.delivered())
}

func TestNotifyUser_OnlyOwnSubscriptionsFire(t *testing.T) {
	service, _, repos, sink := newTestNotifications(t)

	subscribe(t, repos, "user_1", "stub_webhook")
	subscribe(t, repos, "user_2", "stub_webhook")

	service.NotifyUser(context.Background(), deliveredEvent("user_2"))

	assert.Equal(t, []string{"stub_webhook:user_2:package_delivered"}, sink.delivered())
}
