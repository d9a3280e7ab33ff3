package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/internal/models"
)

func TestSettingsRepository_DefaultsWhenUnset(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	imap, err := repos.SettingsRepository.GetImapSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, imap.MaxEmailAgeDays)
	assert.True(t, imap.CheckUIDValidity)

	queue, err := repos.SettingsRepository.GetQueueSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, queue.MaxAgeDays)
	assert.Equal(t, 5000, queue.MaxPerUser)
}

func TestSettingsRepository_ActiveLLMConfig(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.SettingsRepository.GetActiveLLMConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repos.SettingsRepository.SaveLLMConfig(ctx, &models.LLMConfig{
		EndpointURL: "http://llm.internal/v1/chat/completions",
		ModelName:   "extractor-large",
		Active:      true,
	}))

	config, err := repos.SettingsRepository.GetActiveLLMConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "extractor-large", config.ModelName)
}
