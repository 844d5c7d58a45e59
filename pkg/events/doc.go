// Package events publishes user domain events to NATS.
//
// Subjects are derived from a configurable prefix:
//
//	<prefix>.synced   UserSynced, after an upsert was applied
//	<prefix>.deleted  UserDeleted, after a delete
//
// Payloads are JSON. Every message carries a Nats-Msg-Id header so JetStream
// streams can drop duplicates.
//
// The same subjects carry cache invalidation between instances. An instance
// that calls InvalidateOnEvents drops its in-process entries for every user
// any instance reconciles, so peers serve stale reads only until the event
// arrives. Without NATS the bound is the in-process cache TTL.
package events
