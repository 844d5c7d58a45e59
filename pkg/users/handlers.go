package users

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/usersync/pkg/httputil"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Handlers exposes cached user reads over HTTP
type Handlers struct {
	reader *CachedReader
	logger logrus.FieldLogger
}

// NewHandlers creates new user handlers
func NewHandlers(reader *CachedReader, logger logrus.FieldLogger) *Handlers {
	return &Handlers{
		reader: reader,
		logger: logger,
	}
}

// RegisterRoutes registers user routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/users", h.listUsers).Methods("GET")
	router.HandleFunc("/api/v1/users/{id}", h.getUser).Methods("GET")
}

// listUsers handles GET /api/v1/users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", defaultPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit <= 0 || limit > maxPageSize {
		httputil.WriteBadRequest(w, "limit must be between 1 and 500")
		return
	}
	if offset < 0 {
		httputil.WriteBadRequest(w, "offset must not be negative")
		return
	}

	list, err := h.reader.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list users")
		httputil.WriteInternalError(w, errors.New("failed to list users"))
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"users":  list,
		"limit":  limit,
		"offset": offset,
	})
}

// getUser handles GET /api/v1/users/{id}
func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	u, err := h.reader.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", id).Error("Failed to get user")
		httputil.WriteInternalError(w, errors.New("failed to get user"))
		return
	}

	httputil.WriteSuccess(w, u)
}
