package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
)

func createAccountWithFolder(t *testing.T, repos *Repositories) *models.WatchedFolder {
	t.Helper()
	ctx := context.Background()

	account := &models.EmailAccount{
		UserID:       "user_1",
		EmailAddress: "orders@example.com",
		ImapServer:   "imap.example.com",
		ImapPort:     993,
		ImapUsername: "orders@example.com",
		ImapPassword: "enc",
		ImapSecurity: enum.EmailSecurityTLS,
		Active:       true,
	}
	require.NoError(t, repos.EmailAccountRepository.Create(ctx, account))

	folder := &models.WatchedFolder{
		AccountID: account.ID,
		Folder:    "INBOX",
		Active:    true,
	}
	require.NoError(t, repos.WatchedFolderRepository.Create(ctx, folder))
	return folder
}

func TestWatchedFolderRepository_LastSeenUIDNeverRegresses(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	folder := createAccountWithFolder(t, repos)

	require.NoError(t, repos.WatchedFolderRepository.SaveLastSeenUID(ctx, folder.ID, 40))
	require.NoError(t, repos.WatchedFolderRepository.SaveLastSeenUID(ctx, folder.ID, 42))
	// A stale writer with a lower UID must not move the mark back.
	require.NoError(t, repos.WatchedFolderRepository.SaveLastSeenUID(ctx, folder.ID, 41))

	stored, err := repos.WatchedFolderRepository.GetByID(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), stored.LastSeenUID)
}

func TestWatchedFolderRepository_ResetLastSeenUID(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	folder := createAccountWithFolder(t, repos)

	require.NoError(t, repos.WatchedFolderRepository.SaveLastSeenUID(ctx, folder.ID, 99))
	require.NoError(t, repos.WatchedFolderRepository.ResetLastSeenUID(ctx, folder.ID, 777))

	stored, err := repos.WatchedFolderRepository.GetByID(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stored.LastSeenUID)
	require.NotNil(t, stored.UIDValidity)
	assert.Equal(t, uint32(777), *stored.UIDValidity)
}
