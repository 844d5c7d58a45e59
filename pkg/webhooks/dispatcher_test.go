package webhooks

import (
	"bytes"
	"context"
	"testing"

	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Dispatch(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	ctx := context.Background()
	id := "u1"

	t.Run("upsert variant", func(t *testing.T) {
		rec := &fakeReconciler{}
		d := NewDispatcher(rec, logger)
		email := "e1"

		err := d.Dispatch(ctx, UserUpserted{Type: EventUserUpdated, User: users.ExternalUser{
			ID:                    "u1",
			EmailAddresses:        []users.EmailAddress{{ID: "e1", EmailAddress: "ada@x.com"}},
			PrimaryEmailAddressID: &email,
		}})

		require.NoError(t, err)
		assert.Len(t, rec.upserted, 1)
		assert.Empty(t, rec.deleted)
	})

	t.Run("delete variant", func(t *testing.T) {
		rec := &fakeReconciler{}
		d := NewDispatcher(rec, logger)

		require.NoError(t, d.Dispatch(ctx, UserDeleted{ID: &id}))
		assert.Len(t, rec.deleted, 1)
		assert.Empty(t, rec.upserted)
	})

	t.Run("unrecognized variant has no side effect", func(t *testing.T) {
		rec := &fakeReconciler{}
		d := NewDispatcher(rec, logger)

		require.NoError(t, d.Dispatch(ctx, Unrecognized{Type: "organization.created"}))
		assert.Empty(t, rec.upserted)
		assert.Empty(t, rec.deleted)
	})

	t.Run("reconciler errors are returned", func(t *testing.T) {
		d := NewDispatcher(&fakeReconciler{}, logger)

		err := d.Dispatch(ctx, UserDeleted{})
		assert.ErrorIs(t, err, users.ErrMissingID)
	})
}
