package queue

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/notifications"
	"github.com/parceltrace/parceltrace/services/orders"
)

// Processor drains the queue one item at a time: claim, analyze, match into
// an order, notify. An item never stays in processing; every path ends in
// completed or failed.
type Processor struct {
	log           logger.Logger
	repos         *repository.Repositories
	registry      *registry.Registry
	orders        *orders.Service
	notifications *notifications.Service

	mu               sync.Mutex
	warnedNoAnalyzer bool
}

func NewProcessor(log logger.Logger, repos *repository.Repositories, moduleRegistry *registry.Registry, orderService *orders.Service, notificationService *notifications.Service) *Processor {
	return &Processor{
		log:           log,
		repos:         repos,
		registry:      moduleRegistry,
		orders:        orderService,
		notifications: notificationService,
	}
}

// ProcessNextItem handles one queued item. Returns false when there was
// nothing to do.
func (p *Processor) ProcessNextItem(ctx context.Context) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "QueueProcessor.ProcessNextItem")
	defer span.Finish()
	tracing.TagComponentService(span)

	analyzer := p.registry.AvailableAnalyzer(ctx)
	if analyzer == nil {
		p.warnNoAnalyzer(ctx)
		return false, nil
	}
	p.clearAnalyzerWarning()

	item, err := p.repos.QueueRepository.ClaimNext(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, errors.Wrap(err, "failed to claim queue item")
	}
	if item == nil {
		return false, nil
	}
	tracing.TagEntity(span, item.ID)
	tracing.TagUser(span, item.UserID)

	p.log.Debugf("processing queue item %s (user %s)", item.ID, item.UserID)

	analysis, rawOutput, err := analyzer.Analyze(ctx, item.RawData)
	if rawOutput != nil {
		if saveErr := p.repos.QueueRepository.SaveExtractedData(ctx, item.ID, rawOutput); saveErr != nil {
			tracing.TraceErr(span, saveErr)
			p.log.Errorf("failed to store extracted data for item %s: %v", item.ID, saveErr)
		}
	}
	if err != nil {
		tracing.TraceErr(span, err)
		p.fail(ctx, item.ID, errors.Wrap(err, "analyzer failed"))
		return true, nil
	}

	if analysis == nil || !analysis.IsRelevant {
		span.LogFields(tracingLog.Bool("relevant", false))
		if err := p.repos.QueueRepository.MarkCompleted(ctx, item.ID, nil); err != nil {
			tracing.TraceErr(span, err)
			p.log.Errorf("failed to complete queue item %s: %v", item.ID, err)
		}
		return true, nil
	}

	result, err := p.orders.ProcessAnalysis(ctx, item.UserID, analysis, item)
	if err != nil {
		tracing.TraceErr(span, err)
		p.fail(ctx, item.ID, errors.Wrap(err, "failed to apply analysis"))
		return true, nil
	}

	p.notifications.NotifyUser(ctx, deriveEvent(result))

	if err := p.repos.QueueRepository.MarkCompleted(ctx, item.ID, &result.Order.ID); err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("failed to complete queue item %s: %v", item.ID, err)
	}
	return true, nil
}

// Retry clones a failed item back onto the queue.
func (p *Processor) Retry(ctx context.Context, itemID string) (*models.QueueItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "QueueProcessor.Retry")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, itemID)

	clone, err := p.repos.QueueRepository.RetryClone(ctx, itemID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	p.log.Infof("requeued failed item %s as %s", itemID, clone.ID)
	return clone, nil
}

func (p *Processor) fail(ctx context.Context, itemID string, cause error) {
	p.log.Warnf("queue item %s failed: %v", itemID, cause)
	if err := p.repos.QueueRepository.MarkFailed(ctx, itemID, cause.Error()); err != nil {
		p.log.Errorf("failed to mark queue item %s failed: %v", itemID, err)
	}
}

// warnNoAnalyzer logs once per outage, not once per tick.
func (p *Processor) warnNoAnalyzer(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.warnedNoAnalyzer {
		return
	}
	p.warnedNoAnalyzer = true

	count, err := p.repos.QueueRepository.CountQueued(ctx)
	if err != nil {
		count = -1
	}
	p.log.Warnf("no enabled analyzer module; queue paused with %d item(s) waiting", count)
}

func (p *Processor) clearAnalyzerWarning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.warnedNoAnalyzer {
		p.log.Info("analyzer available again, resuming queue processing")
	}
	p.warnedNoAnalyzer = false
}

func deriveEvent(result *orders.ProcessResult) *models.OrderEvent {
	event := &models.OrderEvent{
		UserID: result.Order.UserID,
		Order:  result.Order,
	}
	switch {
	case result.Created:
		event.Event = enum.NotificationNewOrder
	case result.StatusChanged && result.Order.Status == enum.OrderStatusDelivered:
		event.Event = enum.NotificationPackageDelivered
	default:
		event.Event = enum.NotificationTrackingUpdate
	}
	return event
}
