package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody(t *testing.T) {
	t.Run("reads body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"type":"user.created"}`))

		body, err := ReadBody(req)

		require.NoError(t, err)
		assert.Equal(t, `{"type":"user.created"}`, string(body))
	})

	t.Run("body over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("a", 64)))
		req.Body = http.MaxBytesReader(w, req.Body, 16)

		_, err := ReadBody(req)

		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest("GET", "/users/u1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "u1"})

	val, err := ParsePathString(req, "id")
	assert.NoError(t, err)
	assert.Equal(t, "u1", val)

	_, err = ParsePathString(req, "missing")
	assert.EqualError(t, err, "missing path parameter: missing")
}

func TestParsePathStringOrError(t *testing.T) {
	req := httptest.NewRequest("GET", "/users/", nil)
	w := httptest.NewRecorder()

	_, ok := ParsePathStringOrError(w, req, "id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected int
		wantErr  bool
	}{
		{name: "present", url: "/?limit=25", expected: 25},
		{name: "default", url: "/", expected: 50},
		{name: "negative", url: "/?limit=-1", expected: -1},
		{name: "invalid", url: "/?limit=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			val, err := ParseQueryInt(req, "limit", 50)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, val)
		})
	}
}
