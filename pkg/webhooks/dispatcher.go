package webhooks

import (
	"context"

	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/sirupsen/logrus"
)

// UserReconciler applies user events to local state
type UserReconciler interface {
	Upsert(ctx context.Context, ext *users.ExternalUser) error
	Delete(ctx context.Context, id *string) error
}

// Dispatcher routes each event to exactly one reconciler operation
type Dispatcher struct {
	reconciler UserReconciler
	logger     logrus.FieldLogger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(reconciler UserReconciler, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Dispatch applies evt. Unrecognized events are acknowledged without side
// effects so new provider event types do not fail delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	switch e := evt.(type) {
	case UserUpserted:
		return d.reconciler.Upsert(ctx, &e.User)
	case UserDeleted:
		return d.reconciler.Delete(ctx, e.ID)
	case Unrecognized:
		d.logger.WithField("event_type", e.Type).Debug("Ignoring unhandled event type")
		return nil
	default:
		d.logger.WithField("event_type", evt.EventType()).Warn("Unknown event variant")
		return nil
	}
}
