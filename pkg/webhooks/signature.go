package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names set by the sender. The unbranded webhook-* names are
// accepted when no svix-* header is present; the two are never mixed.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"

	fallbackHeaderID        = "webhook-id"
	fallbackHeaderTimestamp = "webhook-timestamp"
	fallbackHeaderSignature = "webhook-signature"
)

const (
	secretPrefix     = "whsec_"
	signatureVersion = "v1"

	// DefaultTolerance bounds the clock skew accepted between sender and receiver
	DefaultTolerance = 5 * time.Minute
)

// Verifier checks that a webhook body was signed with the shared secret
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier for a signing secret. Secrets with the
// whsec_ prefix are base64 encoded; any other secret is used as raw bytes.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	key := []byte(secret)
	if strings.HasPrefix(secret, secretPrefix) {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid signing secret: %w", err)
		}
		if len(decoded) == 0 {
			return nil, ErrMissingSecret
		}
		key = decoded
	}

	return &Verifier{
		key:       key,
		tolerance: tolerance,
		now:       time.Now,
	}, nil
}

// Verify authenticates body against the signature headers and decodes the
// event envelope. The body must be the exact bytes that were received.
func (v *Verifier) Verify(body []byte, headers http.Header) (*Envelope, error) {
	msgID, msgTimestamp, msgSignature := signatureHeaders(headers)
	if msgID == "" || msgTimestamp == "" || msgSignature == "" {
		return nil, ErrMissingHeaders
	}

	ts, err := v.checkTimestamp(msgTimestamp)
	if err != nil {
		return nil, err
	}

	expected := v.mac(msgID, ts, body)
	if !matchesAny(msgSignature, expected) {
		return nil, errNoMatchingSignature
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &env, nil
}

// Sign returns a signature header value for body, in the form the sender
// produces it.
func (v *Verifier) Sign(msgID string, ts time.Time, body []byte) string {
	sig := v.mac(msgID, ts.Unix(), body)
	return signatureVersion + "," + base64.StdEncoding.EncodeToString(sig)
}

func (v *Verifier) checkTimestamp(raw string) (int64, error) {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errInvalidTimestamp
	}

	now := v.now()
	sent := time.Unix(ts, 0)
	if now.Sub(sent) > v.tolerance {
		return 0, errTimestampTooOld
	}
	if sent.Sub(now) > v.tolerance {
		return 0, errTimestampTooNew
	}
	return ts, nil
}

// mac signs "<id>.<timestamp>.<body>"
func (v *Verifier) mac(msgID string, ts int64, body []byte) []byte {
	h := hmac.New(sha256.New, v.key)
	h.Write([]byte(msgID))
	h.Write([]byte("."))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}

// matchesAny checks every space separated "<version>,<base64>" entry.
// Entries for other versions are skipped.
func matchesAny(header string, expected []byte) bool {
	for _, entry := range strings.Fields(header) {
		version, encoded, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersion {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return true
		}
	}
	return false
}

// signatureHeaders reads id, timestamp and signature from one header family:
// svix-* when any of them is present, webhook-* otherwise.
func signatureHeaders(headers http.Header) (id, timestamp, signature string) {
	if headers.Get(HeaderID) != "" || headers.Get(HeaderTimestamp) != "" || headers.Get(HeaderSignature) != "" {
		return headers.Get(HeaderID), headers.Get(HeaderTimestamp), headers.Get(HeaderSignature)
	}
	return headers.Get(fallbackHeaderID), headers.Get(fallbackHeaderTimestamp), headers.Get(fallbackHeaderSignature)
}
