package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/internal/enum"
)

func TestModuleConfigRepository_Ensure(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	config, err := repos.ModuleConfigRepository.Ensure(ctx, "llm_analyzer", enum.ModuleTypeAnalyzer, true, 10)
	require.NoError(t, err)
	assert.True(t, config.Enabled)
	assert.Equal(t, enum.ModuleTypeAnalyzer, config.Type)

	// Existing rows keep their admin-set flag across restarts.
	require.NoError(t, repos.ModuleConfigRepository.SetEnabled(ctx, "llm_analyzer", false))
	config, err = repos.ModuleConfigRepository.Ensure(ctx, "llm_analyzer", enum.ModuleTypeAnalyzer, true, 10)
	require.NoError(t, err)
	assert.False(t, config.Enabled)
}

func TestModuleConfigRepository_ListEnabledByType(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.ModuleConfigRepository.Ensure(ctx, "webhook_notifier", enum.ModuleTypeNotifier, true, 10)
	require.NoError(t, err)
	_, err = repos.ModuleConfigRepository.Ensure(ctx, "email_notifier", enum.ModuleTypeNotifier, false, 20)
	require.NoError(t, err)
	_, err = repos.ModuleConfigRepository.Ensure(ctx, "user_mail", enum.ModuleTypeProvider, true, 10)
	require.NoError(t, err)

	enabled, err := repos.ModuleConfigRepository.ListEnabledByType(ctx, enum.ModuleTypeNotifier)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "webhook_notifier", enabled[0].ModuleKey)
}
