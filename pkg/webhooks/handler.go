package webhooks

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/usersync/pkg/httputil"
	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/sirupsen/logrus"
)

// Path is the route the identity provider delivers to
const Path = "/api/webhooks/clerk"

const (
	msgReceived        = "Webhook received"
	msgMissingHeaders  = "Error: Missing Svix headers"
	msgVerification    = "Error: Verification error"
	msgNoPrimaryEmail  = "No Primary Email Found"
	msgNoUserID        = "No user ID found"
	msgDatabaseFailure = "Internal Server Error: Database failure"
	msgBodyTooLarge    = "Error: Request body too large"
	msgInternal        = "Internal Server Error"
)

// Delivery outcomes recorded in usersync_webhook_events_total
const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Handler receives provider webhooks
type Handler struct {
	verifier   *Verifier
	dispatcher *Dispatcher
	metrics    *observability.Metrics
	logger     logrus.FieldLogger
}

// NewHandler creates a new webhook handler. metrics may be nil.
func NewHandler(verifier *Verifier, dispatcher *Dispatcher, metrics *observability.Metrics, logger logrus.FieldLogger) *Handler {
	return &Handler{
		verifier:   verifier,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterRoutes registers the webhook route
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle(Path, h).Methods("POST")
}

// ServeHTTP handles POST /api/webhooks/clerk
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.FromContext(r.Context(), h.logger)

	body, err := httputil.ReadBody(r)
	if err != nil {
		h.fail(w, log, "", err)
		return
	}

	env, err := h.verifier.Verify(body, r.Header)
	if err != nil {
		h.fail(w, log, "", err)
		return
	}

	evt, err := ParseEvent(env)
	if err != nil {
		h.fail(w, log, env.Type, err)
		return
	}

	log = log.WithField("event_type", env.Type)
	if err := h.dispatcher.Dispatch(r.Context(), evt); err != nil {
		h.fail(w, log, env.Type, err)
		return
	}

	outcome := outcomeProcessed
	if _, ok := evt.(Unrecognized); ok {
		outcome = outcomeIgnored
	}
	h.record(env.Type, outcome)

	log.WithField("outcome", outcome).Info("Webhook received")
	httputil.WriteText(w, http.StatusOK, msgReceived)
}

func (h *Handler) fail(w http.ResponseWriter, log logrus.FieldLogger, eventType EventType, err error) {
	status, message := statusFor(err)

	outcome := outcomeRejected
	if status >= http.StatusInternalServerError {
		outcome = outcomeFailed
		log.WithError(err).Error("Webhook processing failed")
	} else {
		log.WithError(err).Warn("Webhook rejected")
	}
	h.record(eventType, outcome)

	httputil.WriteText(w, status, message)
}

func (h *Handler) record(eventType EventType, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordWebhookEvent(string(eventType), outcome)
}

// statusFor maps the error taxonomy to a response
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingHeaders):
		return http.StatusBadRequest, msgMissingHeaders
	case errors.Is(err, ErrVerificationFailed), errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest, msgVerification
	case errors.Is(err, users.ErrNoPrimaryEmail):
		return http.StatusBadRequest, msgNoPrimaryEmail
	case errors.Is(err, users.ErrMissingID):
		return http.StatusBadRequest, msgNoUserID
	case errors.Is(err, httputil.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, msgBodyTooLarge
	case errors.Is(err, users.ErrStorage):
		return http.StatusInternalServerError, msgDatabaseFailure
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
