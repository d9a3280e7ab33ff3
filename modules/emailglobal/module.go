package emailglobal

import (
	"context"
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/secrets"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/imapwatch"
)

const (
	ModuleKey  = "global_mail"
	WatcherKey = "global"
)

// Module watches the shared catch-all mailbox. Messages are routed to users
// through sender bindings; unbound senders are skipped.
type Module struct {
	log        logger.Logger
	repos      *repository.Repositories
	encryptor  *secrets.Encryptor
	supervisor *imapwatch.Supervisor
	appCtx     context.Context

	// enabled is consulted by the provider on every connect cycle so a
	// disable takes effect without killing the goroutine mid-drain.
	enabled func(ctx context.Context) bool
}

func NewModule(appCtx context.Context, log logger.Logger, repos *repository.Repositories, encryptor *secrets.Encryptor, supervisor *imapwatch.Supervisor) *Module {
	m := &Module{
		log:        log,
		repos:      repos,
		encryptor:  encryptor,
		supervisor: supervisor,
		appCtx:     appCtx,
	}
	m.enabled = func(ctx context.Context) bool {
		config, err := repos.ModuleConfigRepository.GetByKey(ctx, ModuleKey)
		if err != nil {
			return false
		}
		return config.Enabled
	}
	return m
}

func (m *Module) Manifest() *registry.Manifest {
	return &registry.Manifest{
		Key:         ModuleKey,
		Name:        "Shared mailbox",
		Type:        enum.ModuleTypeProvider,
		Version:     "1.0.0",
		Description: "Watches the shared catch-all mailbox and routes messages by sender binding",
		Priority:    20,
		Startup:     m.start,
		Shutdown:    m.stop,
		IsConfigured: func(ctx context.Context) (bool, error) {
			_, err := m.repos.GlobalMailRepository.GetActive(ctx)
			if err != nil {
				return false, nil
			}
			return true, nil
		},
		Status: m.status,
	}
}

func (m *Module) start(ctx context.Context) error {
	m.supervisor.Start(m.appCtx, WatcherKey, &globalProvider{
		log:       m.log,
		repos:     m.repos,
		encryptor: m.encryptor,
		enabled:   m.enabled,
	})
	return nil
}

func (m *Module) stop(ctx context.Context) error {
	m.supervisor.Stop(WatcherKey, 10*time.Second)
	return nil
}

func (m *Module) status(ctx context.Context) (models.JSONMap, error) {
	status := models.JSONMap{
		"running": m.supervisor.IsRunning(WatcherKey),
	}
	if config, err := m.repos.GlobalMailRepository.GetActive(ctx); err == nil {
		status["folder"] = config.Folder
		status["last_seen_uid"] = config.LastSeenUID
	}
	return status, nil
}
