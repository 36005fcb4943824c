package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-maintenance/internal/events"
)

// StartEventLog subscribes a structured-log sink to every event type.
func StartEventLog(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	for _, t := range events.AllTypes() {
		dispatcher.Subscribe(t, func(_ context.Context, e events.Event) error {
			logger.Info("domain event",
				zap.String("event_id", e.ID),
				zap.String("event_type", string(e.Type)),
				zap.String("tenant_id", e.TenantID),
				zap.String("entity_id", e.EntityID),
				zap.String("entity_code", e.EntityCode),
				zap.String("actor", e.Actor.UserID),
				zap.Time("at", e.Timestamp),
				zap.Any("payload", e.Payload),
			)
			return nil
		})
	}
}
