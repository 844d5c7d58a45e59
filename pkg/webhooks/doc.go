// Package webhooks receives identity-provider user events delivered through
// Svix and applies them to local user state.
//
// A delivery flows through three steps:
//
//	env, err := verifier.Verify(body, r.Header) // signature and timestamp
//	evt, err := webhooks.ParseEvent(env)          // UserUpserted, UserDeleted or Unrecognized
//	err = dispatcher.Dispatch(ctx, evt)           // users.Reconciler
//
// Handler wires the three together behind POST /api/webhooks/clerk and maps
// failures to status codes: missing headers, bad signatures, unresolvable
// primary emails and missing ids are 400; storage failures are 500 so the
// sender retries. Unrecognized event types are acknowledged with 200.
//
// The signature is HMAC-SHA256 over "<svix-id>.<svix-timestamp>.<body>",
// base64 encoded and sent as space separated "v1,<sig>" entries in
// svix-signature. Timestamps more than five minutes from the local clock
// are rejected.
package webhooks
