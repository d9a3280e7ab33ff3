package llmanalyzer

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/secrets"
	"github.com/parceltrace/parceltrace/modules/registry"
)

const ModuleKey = "llm_analyzer"

// Module extracts order data from messages through an OpenAI-compatible
// chat-completions endpoint.
type Module struct {
	log       logger.Logger
	repos     *repository.Repositories
	encryptor *secrets.Encryptor
	client    *http.Client

	activeRequests int64
}

func NewModule(log logger.Logger, repos *repository.Repositories, encryptor *secrets.Encryptor) *Module {
	return &Module{
		log:       log,
		repos:     repos,
		encryptor: encryptor,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (m *Module) Manifest() *registry.Manifest {
	return &registry.Manifest{
		Key:         ModuleKey,
		Name:        "LLM analyzer",
		Type:        enum.ModuleTypeAnalyzer,
		Version:     "1.0.0",
		Description: "Extracts order and shipment data from emails with a configurable LLM",
		Priority:    10,
		PreEnabled:  true,
		IsConfigured: func(ctx context.Context) (bool, error) {
			_, err := m.repos.SettingsRepository.GetActiveLLMConfig(ctx)
			if err != nil {
				return false, nil
			}
			return true, nil
		},
		Status: func(ctx context.Context) (models.JSONMap, error) {
			return models.JSONMap{
				"active_requests": atomic.LoadInt64(&m.activeRequests),
			}, nil
		},
		Analyze: m.Analyze,
	}
}
