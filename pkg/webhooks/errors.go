package webhooks

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingHeaders is returned when the id, timestamp or signature header is absent
	ErrMissingHeaders = errors.New("missing svix headers")
	// ErrVerificationFailed is returned for any signature or timestamp mismatch
	ErrVerificationFailed = errors.New("webhook verification failed")
	// ErrMalformedPayload is returned when a verified body is not a valid event
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrMissingSecret is returned by NewVerifier for an empty signing secret
	ErrMissingSecret = errors.New("webhook signing secret is required")
)

// Verification details. All of them match ErrVerificationFailed.
var (
	errInvalidTimestamp    = fmt.Errorf("%w: invalid timestamp", ErrVerificationFailed)
	errTimestampTooOld     = fmt.Errorf("%w: message timestamp too old", ErrVerificationFailed)
	errTimestampTooNew     = fmt.Errorf("%w: message timestamp too new", ErrVerificationFailed)
	errNoMatchingSignature = fmt.Errorf("%w: no matching signature found", ErrVerificationFailed)
)
