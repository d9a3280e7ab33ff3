package emailuser

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/secrets"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/imapwatch"
)

const ModuleKey = "user_mail"

// Module runs one watcher per active watched folder of every active user
// account. Enabling it starts the watchers, disabling stops them.
type Module struct {
	log        logger.Logger
	repos      *repository.Repositories
	encryptor  *secrets.Encryptor
	supervisor *imapwatch.Supervisor

	// Watchers outlive the enable request, so they run on the app context.
	appCtx context.Context
}

func NewModule(appCtx context.Context, log logger.Logger, repos *repository.Repositories, encryptor *secrets.Encryptor, supervisor *imapwatch.Supervisor) *Module {
	return &Module{
		log:        log,
		repos:      repos,
		encryptor:  encryptor,
		supervisor: supervisor,
		appCtx:     appCtx,
	}
}

func (m *Module) Manifest() *registry.Manifest {
	return &registry.Manifest{
		Key:         ModuleKey,
		Name:        "User mailboxes",
		Type:        enum.ModuleTypeProvider,
		Version:     "1.0.0",
		Description: "Watches IMAP folders of user-connected email accounts",
		Priority:    10,
		PreEnabled:  true,
		Startup:     m.startAll,
		Shutdown:    m.stopAll,
		Status:      m.status,
	}
}

func watcherKey(folderID string) string {
	return fmt.Sprintf("user:%s", folderID)
}

// startAll launches a watcher for every active folder of every active
// account.
func (m *Module) startAll(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailuser.startAll")
	defer span.Finish()
	tracing.TagComponentModule(span)

	accounts, err := m.repos.EmailAccountRepository.GetActive(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	for _, account := range accounts {
		for _, folder := range account.WatchedFolders {
			m.StartFolder(folder.ID)
		}
	}
	return nil
}

func (m *Module) stopAll(ctx context.Context) error {
	m.supervisor.StopAll(10 * time.Second)
	return nil
}

// StartFolder starts (or restarts after config change) the watcher for one
// folder.
func (m *Module) StartFolder(folderID string) {
	m.supervisor.Start(m.appCtx, watcherKey(folderID), &folderProvider{
		log:       m.log,
		repos:     m.repos,
		encryptor: m.encryptor,
		folderID:  folderID,
	})
}

func (m *Module) StopFolder(folderID string) {
	m.supervisor.Stop(watcherKey(folderID), 10*time.Second)
}

func (m *Module) status(ctx context.Context) (models.JSONMap, error) {
	accounts, err := m.repos.EmailAccountRepository.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	folders := 0
	running := 0
	for _, account := range accounts {
		for _, folder := range account.WatchedFolders {
			folders++
			if m.supervisor.IsRunning(watcherKey(folder.ID)) {
				running++
			}
		}
	}
	return models.JSONMap{
		"accounts":         len(accounts),
		"watched_folders":  folders,
		"running_watchers": running,
	}, nil
}
