package emailuser

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

// folderProvider adapts one watched folder of a user account to the watch
// loop. Account and folder rows are re-read on every connect so credential
// and activity changes take effect on the next cycle.
type folderProvider struct {
	log       logger.Logger
	repos     *repository.Repositories
	encryptor *secrets.Encryptor
	folderID  string

	// Cached on Connect for routing, fallback ids and enqueue provenance.
	userID     string
	accountID  string
	folderName string
}

// defaultPollInterval applies when the account row carries no interval.
const defaultPollInterval = 120 * time.Second

func (p *folderProvider) Label() string {
	return watcherKey(p.folderID)
}

func (p *folderProvider) Connect(ctx context.Context) (*imapwatch.Connection, error) {
	folder, err := p.repos.WatchedFolderRepository.GetByID(ctx, p.folderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !folder.Active {
		return nil, nil
	}

	account, err := p.repos.EmailAccountRepository.GetByID(ctx, folder.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !account.Active {
		return nil, nil
	}

	password, err := p.encryptor.Decrypt(account.ImapPassword)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt account password")
	}

	session, err := imapwatch.Dial(ctx, imapwatch.DialConfig{
		Server:   account.ImapServer,
		Port:     account.ImapPort,
		Username: account.ImapUsername,
		Password: password,
		Security: account.ImapSecurity,
		Folder:   folder.Folder,
	})
	if err != nil {
		return nil, err
	}

	// The server only shows its true capabilities after login; remember
	// them so the account is forced onto polling when IDLE is missing.
	capable := session.SupportsIdle()
	if account.IdleCapable == nil || *account.IdleCapable != capable {
		if err := p.repos.EmailAccountRepository.SaveIdleCapability(ctx, account.ID, capable); err != nil {
			p.log.Warnf("failed to store idle capability for account %s: %v", account.ID, err)
		}
	}

	p.userID = account.UserID
	p.accountID = account.ID
	p.folderName = folder.Folder

	interval := time.Duration(account.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &imapwatch.Connection{
		Session:      session,
		UsePolling:   account.PreferPolling || !capable,
		PollInterval: interval,
	}, nil
}

func (p *folderProvider) LoadContext(ctx context.Context) (*imapwatch.FetchContext, error) {
	folder, err := p.repos.WatchedFolderRepository.GetByID(ctx, p.folderID)
	if err != nil {
		return nil, err
	}
	settings, err := p.repos.SettingsRepository.GetImapSettings(ctx)
	if err != nil {
		return nil, err
	}

	// The per-folder window beats the global default.
	maxAge := utils.GetOrDefault(folder.MaxEmailAgeDays, settings.MaxEmailAgeDays)

	return &imapwatch.FetchContext{
		LastSeenUID:      folder.LastSeenUID,
		UIDValidity:      folder.UIDValidity,
		MaxEmailAgeDays:  maxAge,
		CheckUIDValidity: settings.CheckUIDValidity,
	}, nil
}

func (p *folderProvider) StoreUIDValidity(ctx context.Context, validity uint32) error {
	return p.repos.WatchedFolderRepository.SaveUIDValidity(ctx, p.folderID, validity)
}

func (p *folderProvider) ResetForUIDValidityChange(ctx context.Context, validity uint32) error {
	return p.repos.WatchedFolderRepository.ResetLastSeenUID(ctx, p.folderID, validity)
}

// Route always binds messages to the account owner.
func (p *folderProvider) Route(ctx context.Context, msg *mailparse.ParsedMessage) (*imapwatch.RouteResult, error) {
	return &imapwatch.RouteResult{
		UserID: p.userID,
		Source: enum.MailSourceUserMailbox,
	}, nil
}

func (p *folderProvider) FallbackID(uid uint32, uidValidity *uint32) string {
	return mailparse.FallbackMessageID(p.accountID, p.folderName, uidValidity, uid)
}

func (p *folderProvider) Enqueue(ctx context.Context, route *imapwatch.RouteResult, msg *mailparse.ParsedMessage, uid uint32) (bool, error) {
	return imapwatch.EnqueueParsed(ctx, p.repos.SeenMessageRepository, route, msg, uid, p.accountID, p.folderName)
}

func (p *folderProvider) SaveUID(ctx context.Context, uid uint32) error {
	return p.repos.WatchedFolderRepository.SaveLastSeenUID(ctx, p.folderID, uid)
}
