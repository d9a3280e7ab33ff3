package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/models"
)

type SettingsRepository interface {
	// GetImapSettings returns stored settings or defaults when no row exists.
	GetImapSettings(ctx context.Context) (*models.ImapSettings, error)
	SaveImapSettings(ctx context.Context, settings *models.ImapSettings) error

	GetQueueSettings(ctx context.Context) (*models.QueueSettings, error)
	SaveQueueSettings(ctx context.Context, settings *models.QueueSettings) error

	GetActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error)
	SaveLLMConfig(ctx context.Context, config *models.LLMConfig) error

	GetSMTPConfig(ctx context.Context) (*models.SMTPConfig, error)
	SaveSMTPConfig(ctx context.Context, config *models.SMTPConfig) error
}
