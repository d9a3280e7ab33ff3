package emailglobal

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/secrets"
	"github.com/parceltrace/parceltrace/internal/utils"
	"github.com/parceltrace/parceltrace/services/imapwatch"
	"github.com/parceltrace/parceltrace/services/mailparse"
)

// globalProvider feeds the shared mailbox into the watch loop in polling
// mode. Routing resolves the bare sender address against sender bindings.
type globalProvider struct {
	log       logger.Logger
	repos     *repository.Repositories
	encryptor *secrets.Encryptor
	enabled   func(ctx context.Context) bool

	configID string
	folder   string
}

func (p *globalProvider) Label() string {
	return WatcherKey
}

func (p *globalProvider) Connect(ctx context.Context) (*imapwatch.Connection, error) {
	// Disabling the module stops the watcher at the next cycle boundary.
	if !p.enabled(ctx) {
		return nil, nil
	}

	config, err := p.repos.GlobalMailRepository.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	password, err := p.encryptor.Decrypt(config.ImapPassword)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt mailbox password")
	}

	session, err := imapwatch.Dial(ctx, imapwatch.DialConfig{
		Server:   config.ImapServer,
		Port:     config.ImapPort,
		Username: config.ImapUsername,
		Password: password,
		Security: config.ImapSecurity,
		Folder:   config.Folder,
	})
	if err != nil {
		return nil, err
	}

	// Capabilities are only trustworthy after login; remember them so the
	// mailbox is forced onto polling when IDLE is missing.
	capable := session.SupportsIdle()
	if config.IdleCapable == nil || *config.IdleCapable != capable {
		if err := p.repos.GlobalMailRepository.SaveIdleCapability(ctx, config.ID, capable); err != nil {
			p.log.Warnf("failed to store idle capability for global mailbox %s: %v", config.ID, err)
		}
	}

	p.configID = config.ID
	p.folder = config.Folder

	return &imapwatch.Connection{
		Session:      session,
		UsePolling:   config.PreferPolling || !capable,
		PollInterval: time.Duration(config.PollIntervalSecs) * time.Second,
	}, nil
}

func (p *globalProvider) LoadContext(ctx context.Context) (*imapwatch.FetchContext, error) {
	config, err := p.repos.GlobalMailRepository.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := p.repos.SettingsRepository.GetImapSettings(ctx)
	if err != nil {
		return nil, err
	}

	return &imapwatch.FetchContext{
		LastSeenUID:      config.LastSeenUID,
		UIDValidity:      config.UIDValidity,
		MaxEmailAgeDays:  settings.MaxEmailAgeDays,
		CheckUIDValidity: settings.CheckUIDValidity,
	}, nil
}

func (p *globalProvider) StoreUIDValidity(ctx context.Context, validity uint32) error {
	return p.repos.GlobalMailRepository.SaveUIDValidity(ctx, p.configID, validity)
}

func (p *globalProvider) ResetForUIDValidityChange(ctx context.Context, validity uint32) error {
	return p.repos.GlobalMailRepository.ResetLastSeenUID(ctx, p.configID, validity)
}

// Route resolves the sender binding; unbound senders are skipped with the
// UID advanced so they are not rescanned forever.
func (p *globalProvider) Route(ctx context.Context, msg *mailparse.ParsedMessage) (*imapwatch.RouteResult, error) {
	address := utils.ExtractAddressFromHeader(msg.Sender)
	if address == "" {
		return nil, nil
	}

	binding, err := p.repos.SenderBindingRepository.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &imapwatch.RouteResult{
		UserID: binding.UserID,
		Source: enum.MailSourceGlobalMailbox,
	}, nil
}

func (p *globalProvider) FallbackID(uid uint32, uidValidity *uint32) string {
	return mailparse.FallbackMessageID(p.configID, p.folder, uidValidity, uid)
}

func (p *globalProvider) Enqueue(ctx context.Context, route *imapwatch.RouteResult, msg *mailparse.ParsedMessage, uid uint32) (bool, error) {
	return imapwatch.EnqueueParsed(ctx, p.repos.SeenMessageRepository, route, msg, uid, p.configID, p.folder)
}

func (p *globalProvider) SaveUID(ctx context.Context, uid uint32) error {
	return p.repos.GlobalMailRepository.SaveLastSeenUID(ctx, p.configID, uid)
}
