package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/internal/models"
)

func createEmailAccount(t *testing.T, repos *Repositories) *models.EmailAccount {
	t.Helper()
	account := &models.EmailAccount{
		UserID:       "user_1",
		EmailAddress: "jordan@example.com",
		ImapServer:   "imap.example.com",
		ImapPort:     993,
		ImapUsername: "jordan@example.com",
		ImapPassword: "enc:secret",
	}
	require.NoError(t, repos.EmailAccountRepository.Create(context.Background(), account))
	return account
}

func TestEmailAccountRepository_Defaults(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	account := createEmailAccount(t, repos)

	stored, err := repos.EmailAccountRepository.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, stored.PreferPolling)
	assert.Equal(t, 120, stored.PollIntervalSecs)
	// Never probed yet.
	assert.Nil(t, stored.IdleCapable)
}

func TestEmailAccountRepository_SaveIdleCapability(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	account := createEmailAccount(t, repos)

	require.NoError(t, repos.EmailAccountRepository.SaveIdleCapability(ctx, account.ID, true))
	stored, err := repos.EmailAccountRepository.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.IdleCapable)
	assert.True(t, *stored.IdleCapable)
	assert.False(t, stored.PreferPolling)

	// A server without IDLE flips the account to polling for good.
	require.NoError(t, repos.EmailAccountRepository.SaveIdleCapability(ctx, account.ID, false))
	stored, err = repos.EmailAccountRepository.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.IdleCapable)
	assert.False(t, *stored.IdleCapable)
	assert.True(t, stored.PreferPolling)
}

func TestGlobalMailRepository_SaveIdleCapability(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	config := &models.GlobalMailConfig{
		ImapServer:   "imap.example.com",
		ImapPort:     993,
		ImapUsername: "orders@example.com",
		ImapPassword: "enc:secret",
		Folder:       "INBOX",
		Active:       true,
	}
	require.NoError(t, repos.GlobalMailRepository.Save(ctx, config))

	require.NoError(t, repos.GlobalMailRepository.SaveIdleCapability(ctx, config.ID, false))

	stored, err := repos.GlobalMailRepository.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored.IdleCapable)
	assert.False(t, *stored.IdleCapable)
	assert.True(t, stored.PreferPolling)
}
