package users

import (
	"context"
	"time"

	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/platinummonkey/usersync/pkg/users")

// Reconciler applies provider user events to the store and invalidates
// the cached reads they affect.
type Reconciler struct {
	store       Store
	invalidator Invalidator
	publisher   Publisher
	metrics     *observability.Metrics
	logger      logrus.FieldLogger
}

// ReconcilerOption configures optional collaborators
type ReconcilerOption func(*Reconciler)

// WithPublisher publishes domain events after every successful mutation
func WithPublisher(p Publisher) ReconcilerOption {
	return func(r *Reconciler) {
		r.publisher = p
	}
}

// WithMetrics records storage and cache outcomes
func WithMetrics(m *observability.Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// NewReconciler creates a new reconciler
func NewReconciler(store Store, invalidator Invalidator, logger logrus.FieldLogger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert creates or updates the local user for a user.created or
// user.updated event. Nothing is written when the primary email cannot be
// resolved.
func (r *Reconciler) Upsert(ctx context.Context, ext *ExternalUser) error {
	ctx, span := tracer.Start(ctx, "users.Upsert", trace.WithAttributes(attribute.String("user.id", ext.ID)))
	defer span.End()

	log := observability.FromContext(ctx, r.logger).WithField("user_id", ext.ID)

	u, err := ext.ToUser()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Warn("Rejecting user event")
		return err
	}

	start := time.Now()
	applied, err := r.store.Upsert(ctx, u)
	r.observeStorage("upsert", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		log.WithError(err).Error("Database error while upserting user")
		return &StorageError{Op: "upsert", Err: err}
	}

	if applied {
		log.Info("User upserted successfully")
	} else {
		log.WithField("updated_at", u.UpdatedAt).Info("Stored user is newer, ignoring stale event")
	}
	span.SetAttributes(attribute.Bool("user.applied", applied))

	r.invalidate(ctx, log, u.ID)

	if applied && r.publisher != nil {
		err := r.publisher.PublishUserSynced(ctx, u)
		r.observePublish("synced", err)
		if err != nil {
			log.WithError(err).Warn("Failed to publish user synced event")
		}
	}

	return nil
}

// Delete removes the local user for a user.deleted event. A nil or empty id
// is rejected; a missing row is treated as already deleted.
func (r *Reconciler) Delete(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		r.logger.Warn("Rejecting user.deleted event without id")
		return ErrMissingID
	}

	ctx, span := tracer.Start(ctx, "users.Delete", trace.WithAttributes(attribute.String("user.id", *id)))
	defer span.End()

	log := observability.FromContext(ctx, r.logger).WithField("user_id", *id)

	start := time.Now()
	removed, err := r.store.Delete(ctx, *id)
	r.observeStorage("delete", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		log.WithError(err).Error("Database error while deleting user")
		return &StorageError{Op: "delete", Err: err}
	}

	if removed {
		log.Info("User deleted successfully")
	} else {
		log.Debug("User already absent")
	}

	r.invalidate(ctx, log, *id)

	if r.publisher != nil {
		err := r.publisher.PublishUserDeleted(ctx, *id)
		r.observePublish("deleted", err)
		if err != nil {
			log.WithError(err).Warn("Failed to publish user deleted event")
		}
	}

	return nil
}

// invalidate drops the global and per-user tags. The store is already
// committed, so a failure here is logged and counted but not returned.
func (r *Reconciler) invalidate(ctx context.Context, log logrus.FieldLogger, id string) {
	if r.invalidator == nil {
		return
	}
	err := r.invalidator.InvalidateTags(ctx, GlobalTag(), IDTag(id))
	if r.metrics != nil {
		r.metrics.RecordCacheInvalidation(err)
	}
	if err != nil {
		log.WithError(err).Warn("Cache invalidation failed, reads may be stale until TTL expiry")
	}
}

func (r *Reconciler) observeStorage(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordStorageOperation(op, time.Since(start), err)
}

func (r *Reconciler) observePublish(kind string, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordPublish(kind, err)
}
