// Package users keeps the local user table in step with the identity provider.
//
// # Overview
//
// The Reconciler turns provider user objects into local User rows and applies
// them through a Store, then invalidates the cached reads that depend on them:
//
//	users             every list read
//	users:<id>        reads of a single user
//
// Upserts are keyed by provider id and skip events whose updated_at is older
// than the stored row, so redelivered or reordered webhooks converge on the
// newest state. Deletes are idempotent.
//
// # Usage Example
//
//	rec := users.NewReconciler(store, cache, logger, users.WithMetrics(m))
//	if err := rec.Upsert(ctx, ext); errors.Is(err, users.ErrNoPrimaryEmail) {
//		// reject the event
//	}
//
// # Related Packages
//
//   - pkg/webhooks: verifies and dispatches provider events
//   - pkg/cache: tag-aware cache backends
//   - pkg/storage/postgres, pkg/storage/sqlite: Store implementations
package users
