package notifications

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/modules/registry"
)

// Service fans an order event out to every enabled notifier module the user
// has subscriptions for. Delivery is best effort; a failing notifier never
// blocks the others or the queue.
type Service struct {
	log      logger.Logger
	registry *registry.Registry
	configs  interfaces.NotificationConfigRepository
}

func NewService(log logger.Logger, moduleRegistry *registry.Registry, configRepo interfaces.NotificationConfigRepository) *Service {
	return &Service{
		log:      log,
		registry: moduleRegistry,
		configs:  configRepo,
	}
}

func (s *Service) NotifyUser(ctx context.Context, event *models.OrderEvent) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "NotificationsService.NotifyUser")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUser(span, event.UserID)
	span.LogFields(tracingLog.String("event", event.Event.String()))

	delivered := 0
	for _, notifier := range s.registry.EnabledNotifiers(ctx) {
		subscriptions, err := s.configs.ListEnabledForUserAndNotifier(ctx, event.UserID, notifier.Key)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to load %s subscriptions for user %s: %v", notifier.Key, event.UserID, err)
			continue
		}

		for _, subscription := range subscriptions {
			if !subscription.WantsEvent(event.Event.String()) {
				continue
			}
			if err := notifier.Notify(ctx, event, subscription); err != nil {
				tracing.TraceErr(span, err)
				s.log.Errorf("notifier %s failed for user %s: %v", notifier.Key, event.UserID, err)
				continue
			}
			delivered++
		}
	}

	if delivered > 0 {
		s.log.Infof("delivered %s to user %s via %d subscription(s)", event.Event, event.UserID, delivered)
	}
}
