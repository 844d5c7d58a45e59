package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/usersync/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, store *memStore) *mux.Router {
	t.Helper()
	reader := NewCachedReader(store, cache.NewMemoryCache(100, time.Minute), quietLogger())
	router := mux.NewRouter()
	NewHandlers(reader, quietLogger()).RegisterRoutes(router)
	return router
}

func TestHandlers_GetUser(t *testing.T) {
	store := newMemStore()
	u, err := adaLovelace().ToUser()
	require.NoError(t, err)
	_, err = store.Upsert(context.Background(), u)
	require.NoError(t, err)
	router := newTestRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.Equal(t, "ada@x.com", got.Email)
}

func TestHandlers_GetUser_NotFound(t *testing.T) {
	router := newTestRouter(t, newMemStore())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlers_GetUser_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errBoom
	router := newTestRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestHandlers_ListUsers(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"u1", "u2", "u3"} {
		ext := adaLovelace()
		ext.ID = id
		u, err := ext.ToUser()
		require.NoError(t, err)
		_, err = store.Upsert(context.Background(), u)
		require.NoError(t, err)
	}
	router := newTestRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users?limit=2&offset=1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Users  []User `json:"users"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, 2, body.Limit)
	assert.Equal(t, 1, body.Offset)
	require.Len(t, body.Users, 2)
	assert.Equal(t, "u2", body.Users[0].ID)
	assert.Equal(t, "u3", body.Users[1].ID)
}

func TestHandlers_ListUsers_BadParams(t *testing.T) {
	router := newTestRouter(t, newMemStore())

	for _, query := range []string{"limit=abc", "limit=0", "limit=501", "offset=-1", "offset=x"} {
		t.Run(query, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}
