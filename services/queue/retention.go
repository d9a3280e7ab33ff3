package queue

import (
	"context"
	"time"

	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
)

// Retention prunes the queue: everything older than the configured age,
// then the per-user overflow above the cap. Status does not matter; an item
// still queued after the retention window is stale and dropped too.
type Retention struct {
	log   logger.Logger
	repos *repository.Repositories
}

func NewRetention(log logger.Logger, repos *repository.Repositories) *Retention {
	return &Retention{
		log:   log,
		repos: repos,
	}
}

func (r *Retention) Cleanup(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "QueueRetention.Cleanup")
	defer span.Finish()
	tracing.TagComponentService(span)

	settings, err := r.repos.SettingsRepository.GetQueueSettings(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to load queue settings")
	}

	cutoff := utils.Now().Add(-time.Duration(settings.MaxAgeDays) * 24 * time.Hour)
	expired, err := r.repos.QueueRepository.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to delete expired queue items")
	}

	capped, err := r.repos.QueueRepository.EnforcePerUserCap(ctx, settings.MaxPerUser)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to enforce per-user queue cap")
	}

	span.LogFields(tracingLog.Int64("deleted.expired", expired), tracingLog.Int64("deleted.capped", capped))
	if expired > 0 || capped > 0 {
		r.log.Infof("queue retention removed %d expired and %d over-cap item(s)", expired, capped)
	}
	return nil
}
