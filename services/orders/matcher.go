package orders

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

const vendorMatchWindow = 5

// Matcher finds the existing order an analysis belongs to. Precedence:
// exact order number, then exact tracking number, then same vendor domain
// with overlapping item names among the user's most recent orders.
type Matcher struct {
	orders interfaces.OrderRepository
}

func NewMatcher(orderRepo interfaces.OrderRepository) *Matcher {
	return &Matcher{orders: orderRepo}
}

// Match returns (nil, nil) when no order matches.
func (m *Matcher) Match(ctx context.Context, userID string, analysis *models.Analysis) (*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Matcher.Match")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUser(span, userID)

	if analysis.OrderNumber != "" {
		order, err := m.orders.GetByOrderNumber(ctx, userID, analysis.OrderNumber)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}

	if analysis.TrackingNumber != "" {
		order, err := m.orders.GetByTrackingNumber(ctx, userID, analysis.TrackingNumber)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}

	if analysis.VendorDomain == "" || len(analysis.Items) == 0 {
		return nil, nil
	}

	recent, err := m.orders.RecentByVendorDomain(ctx, userID, analysis.VendorDomain, vendorMatchWindow)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	names := make(map[string]struct{}, len(analysis.Items))
	for _, item := range analysis.Items {
		names[strings.ToLower(strings.TrimSpace(item.Name))] = struct{}{}
	}

	for _, order := range recent {
		for _, item := range order.Items {
			if _, ok := names[strings.ToLower(strings.TrimSpace(item.Name))]; ok {
				return order, nil
			}
		}
	}
	return nil, nil
}
