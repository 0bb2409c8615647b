package service

import (
	"context"
	"time"

	"go-bookstore-pos/internal/cache"
	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/metrics"

	"go.uber.org/zap"
)

const reportCachePattern = "report:*"

// Notifier runs the side effects of a committed unit of work. It must only be
// called after the database transaction returned nil; its failures are logged
// and never change the outcome of the operation.
type Notifier struct {
	publisher events.Publisher
	cache     cache.Cache
	metrics   *metrics.Metrics
	logger    *zap.Logger
	timeout   time.Duration
}

func NewNotifier(publisher events.Publisher, c cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Notifier{
		publisher: publisher,
		cache:     c,
		metrics:   m,
		logger:    logger.Named("notifier"),
		timeout:   5 * time.Second,
	}
}

// Committed publishes the event and drops cached reports
func (n *Notifier) Committed(ctx context.Context, event events.Event) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, event); err != nil {
		n.metrics.RecordPublishFailure(event.Action)
		n.logger.Warn("failed to publish event", zap.String("action", event.Action), zap.Error(err))
	}
	n.InvalidateReports(ctx)
}

// Publish sends an event that has no effect on reports, e.g. presence
func (n *Notifier) Publish(ctx context.Context, event events.Event) {
	if n == nil {
		return
	}
	if err := n.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		n.logger.Debug("failed to publish event", zap.String("action", event.Action), zap.Error(err))
	}
}

func (n *Notifier) InvalidateReports(ctx context.Context) {
	if n == nil || n.cache == nil {
		return
	}
	if err := n.cache.DeleteByPattern(ctx, reportCachePattern); err != nil {
		n.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}

// Metrics is nil-safe like the collectors themselves
func (n *Notifier) Metrics() *metrics.Metrics {
	if n == nil {
		return nil
	}
	return n.metrics
}
