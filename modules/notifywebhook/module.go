package notifywebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
	"github.com/parceltrace/parceltrace/modules/registry"
)

const ModuleKey = "webhook_notifier"

// Module posts order events to a per-subscription webhook URL.
type Module struct {
	log    logger.Logger
	client *http.Client
}

func NewModule(log logger.Logger) *Module {
	return &Module{
		log: log,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (m *Module) Manifest() *registry.Manifest {
	return &registry.Manifest{
		Key:         ModuleKey,
		Name:        "Webhook notifier",
		Type:        enum.ModuleTypeNotifier,
		Version:     "1.0.0",
		Description: "Delivers order events as JSON POSTs to user-configured URLs",
		Priority:    10,
		PreEnabled:  true,
		Notify:      m.Notify,
	}
}

func (m *Module) Notify(ctx context.Context, event *models.OrderEvent, config *models.NotificationConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notifywebhook.Notify")
	defer span.Finish()
	tracing.TagComponentModule(span)
	tracing.TagUser(span, event.UserID)

	url := config.Config.GetString("url")
	if url == "" {
		return errors.New("webhook subscription has no url")
	}

	payload := models.JSONMap{
		"event":     event.Event.String(),
		"user_id":   event.UserID,
		"order":     event.Order,
		"timestamp": utils.Now().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "webhook delivery failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := errors.Errorf("webhook returned status %d", resp.StatusCode)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
