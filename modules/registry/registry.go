package registry

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

// ModuleStatus is the listing row returned by the modules API.
type ModuleStatus struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Type        enum.ModuleType `json:"type"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Enabled     bool            `json:"enabled"`
	Configured  bool            `json:"configured"`
	Status      models.JSONMap  `json:"status,omitempty"`
}

// Registry holds the registered manifests and gates them through their
// persisted enabled flag.
type Registry struct {
	log        logger.Logger
	configRepo interfaces.ModuleConfigRepository

	mu      sync.RWMutex
	modules map[string]*Manifest
	order   []string
}

func NewRegistry(log logger.Logger, configRepo interfaces.ModuleConfigRepository) *Registry {
	return &Registry{
		log:        log,
		configRepo: configRepo,
		modules:    make(map[string]*Manifest),
	}
}

func (r *Registry) Register(m *Manifest) error {
	if m == nil || m.Key == "" {
		return errors.New("manifest has no key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Key]; exists {
		return errors.Errorf("module %s already registered", m.Key)
	}
	r.modules[m.Key] = m
	r.order = append(r.order, m.Key)
	return nil
}

func (r *Registry) Get(key string) *Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[key]
}

func (r *Registry) All() []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Manifest, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.modules[key])
	}
	return result
}

func (r *Registry) ByType(moduleType enum.ModuleType) []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Manifest
	for _, key := range r.order {
		if r.modules[key].Type == moduleType {
			result = append(result, r.modules[key])
		}
	}
	return result
}

// SyncConfigs ensures a ModuleConfig row exists for every manifest. Existing
// rows keep their enabled flag.
func (r *Registry) SyncConfigs(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Registry.SyncConfigs")
	defer span.Finish()
	tracing.TagComponentModule(span)

	for _, m := range r.All() {
		if _, err := r.configRepo.Ensure(ctx, m.Key, m.Type, m.PreEnabled, m.Priority); err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrapf(err, "failed to sync config for module %s", m.Key)
		}
	}
	return nil
}

func (r *Registry) IsEnabled(ctx context.Context, key string) bool {
	config, err := r.configRepo.GetByKey(ctx, key)
	if err != nil {
		return false
	}
	return config.Enabled
}

// SetEnabled flips the persisted flag and runs the matching lifecycle hook.
// Hook failures are logged but never revert the toggle; the operator's
// intent is recorded regardless.
func (r *Registry) SetEnabled(ctx context.Context, key string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Registry.SetEnabled")
	defer span.Finish()
	tracing.TagComponentModule(span)

	m := r.Get(key)
	if m == nil {
		return errors.Errorf("unknown module: %s", key)
	}

	config, err := r.configRepo.GetByKey(ctx, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if config.Enabled == enabled {
		return nil
	}

	if err := r.configRepo.SetEnabled(ctx, key, enabled); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if enabled && m.Startup != nil {
		if err := m.Startup(ctx); err != nil {
			tracing.TraceErr(span, err)
			r.log.Errorf("startup hook of module %s failed: %v", key, err)
		}
	}
	if !enabled && m.Shutdown != nil {
		if err := m.Shutdown(ctx); err != nil {
			tracing.TraceErr(span, err)
			r.log.Errorf("shutdown hook of module %s failed: %v", key, err)
		}
	}
	return nil
}

// StartupEnabled runs the Startup hook of every enabled module, in
// registration order. A failing hook is logged and the rest still start.
func (r *Registry) StartupEnabled(ctx context.Context) {
	span, ctx := tracing.StartTracerSpan(ctx, "Registry.StartupEnabled")
	defer span.Finish()
	tracing.TagComponentModule(span)

	for _, m := range r.All() {
		if m.Startup == nil || !r.IsEnabled(ctx, m.Key) {
			continue
		}
		if err := m.Startup(ctx); err != nil {
			tracing.TraceErr(span, err)
			r.log.Errorf("startup hook of module %s failed: %v", m.Key, err)
		}
	}
}

// ShutdownAll runs the Shutdown hook of every enabled module, reverse
// registration order.
func (r *Registry) ShutdownAll(ctx context.Context) {
	all := r.All()
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.Shutdown == nil || !r.IsEnabled(ctx, m.Key) {
			continue
		}
		if err := m.Shutdown(ctx); err != nil {
			r.log.Errorf("shutdown hook of module %s failed: %v", m.Key, err)
		}
	}
}

// AvailableAnalyzer returns the first enabled, configured analyzer, or nil.
func (r *Registry) AvailableAnalyzer(ctx context.Context) *Manifest {
	for _, m := range r.ByType(enum.ModuleTypeAnalyzer) {
		if m.Analyze == nil {
			continue
		}
		if !r.IsEnabled(ctx, m.Key) {
			continue
		}
		if !m.Configured(ctx) {
			continue
		}
		return m
	}
	return nil
}

// EnabledNotifiers returns enabled notifier modules with a Notify hook.
func (r *Registry) EnabledNotifiers(ctx context.Context) []*Manifest {
	var result []*Manifest
	for _, m := range r.ByType(enum.ModuleTypeNotifier) {
		if m.Notify == nil {
			continue
		}
		if !r.IsEnabled(ctx, m.Key) {
			continue
		}
		result = append(result, m)
	}
	return result
}

// StatusReport assembles the module listing, including per-module status
// payloads from modules that expose one.
func (r *Registry) StatusReport(ctx context.Context) []ModuleStatus {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Registry.StatusReport")
	defer span.Finish()
	tracing.TagComponentModule(span)

	var result []ModuleStatus
	for _, m := range r.All() {
		status := ModuleStatus{
			Key:         m.Key,
			Name:        m.Name,
			Type:        m.Type,
			Version:     m.Version,
			Description: m.Description,
			Priority:    m.Priority,
			Enabled:     r.IsEnabled(ctx, m.Key),
			Configured:  m.Configured(ctx),
		}
		if m.Status != nil {
			if payload, err := m.Status(ctx); err == nil {
				status.Status = payload
			}
		}
		result = append(result, status)
	}
	return result
}
