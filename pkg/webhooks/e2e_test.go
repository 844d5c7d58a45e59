package webhooks_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/platinummonkey/usersync/pkg/cache"
	"github.com/platinummonkey/usersync/pkg/storage/sqlite"
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/platinummonkey/usersync/pkg/webhooks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

const adaCreated = `{"type":"user.created","object":"event","data":{"id":"u1","first_name":"Ada","last_name":"Lovelace",` +
	`"email_addresses":[{"id":"e1","email_address":"ada@x.com"}],"primary_email_address_id":"e1",` +
	`"image_url":"http://img/u1.png","created_at":1700000000000,"updated_at":1700000000000}}`

const adaDeleted = `{"type":"user.deleted","object":"event","data":{"id":"u1","deleted":true}}`

type pipeline struct {
	store    *sqlite.UserStore
	cache    *cache.RedisCache
	redis    *miniredis.Miniredis
	verifier *webhooks.Verifier
	router   *mux.Router
	seq      int
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := sqlite.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	t.Cleanup(func() { rc.Close() })

	verifier, err := webhooks.NewVerifier(secret, 0)
	require.NoError(t, err)

	reconciler := users.NewReconciler(store, rc, logger)
	handler := webhooks.NewHandler(verifier, webhooks.NewDispatcher(reconciler, logger), nil, logger)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &pipeline{
		store:    store,
		cache:    rc,
		redis:    mr,
		verifier: verifier,
		router:   router,
	}
}

func (p *pipeline) deliver(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	p.seq++
	msgID := "msg_" + strconv.Itoa(p.seq)
	ts := time.Now()

	req := httptest.NewRequest(http.MethodPost, webhooks.Path, strings.NewReader(body))
	req.Header.Set(webhooks.HeaderID, msgID)
	req.Header.Set(webhooks.HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(webhooks.HeaderSignature, p.verifier.Sign(msgID, ts, []byte(body)))

	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	return w
}

func (p *pipeline) seedCache(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.cache.Set(ctx, "user:u1", []byte("{}"), users.GlobalTag(), users.IDTag("u1")))
	require.NoError(t, p.cache.Set(ctx, "users:list:50:0", []byte("[]"), users.GlobalTag()))
}

func (p *pipeline) cached(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := p.cache.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestPipeline_CreateThenDelete(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.seedCache(t)
	w := p.deliver(t, adaCreated)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook received", w.Body.String())

	u, err := p.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "ada@x.com", u.Email)
	assert.Equal(t, "http://img/u1.png", u.ImageURL)
	assert.Equal(t, int64(1700000000000), u.CreatedAt.UnixMilli())

	assert.False(t, p.cached(t, "user:u1"))
	assert.False(t, p.cached(t, "users:list:50:0"))

	p.seedCache(t)
	w = p.deliver(t, adaDeleted)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = p.store.Get(ctx, "u1")
	assert.ErrorIs(t, err, users.ErrNotFound)
	assert.False(t, p.cached(t, "user:u1"))
	assert.False(t, p.cached(t, "users:list:50:0"))
}

func TestPipeline_RedeliveryIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, p.deliver(t, adaCreated).Code)
	}
	n, err := p.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, p.deliver(t, adaDeleted).Code)
	}
	n, err = p.store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipeline_StaleUpdateIgnored(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	newer := strings.Replace(adaCreated, `"updated_at":1700000000000`, `"updated_at":1700000005000`, 1)
	newer = strings.Replace(newer, `"first_name":"Ada"`, `"first_name":"Augusta"`, 1)
	require.Equal(t, http.StatusOK, p.deliver(t, newer).Code)

	stale := strings.Replace(adaCreated, `"user.created"`, `"user.updated"`, 1)
	require.Equal(t, http.StatusOK, p.deliver(t, stale).Code)

	u, err := p.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Augusta Lovelace", u.Name)
}

func TestPipeline_RejectionsLeaveStateUntouched(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	require.Equal(t, http.StatusOK, p.deliver(t, adaCreated).Code)

	noPrimary := strings.Replace(adaCreated, `"primary_email_address_id":"e1"`, `"primary_email_address_id":"e9"`, 1)
	noPrimary = strings.Replace(noPrimary, `"first_name":"Ada"`, `"first_name":"Mallory"`, 1)
	noPrimary = strings.Replace(noPrimary, `"updated_at":1700000000000`, `"updated_at":1700000009000`, 1)

	p.seedCache(t)

	w := p.deliver(t, noPrimary)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No Primary Email Found", w.Body.String())

	w = p.deliver(t, `{"type":"user.deleted","data":{"deleted":true}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No user ID found", w.Body.String())

	req := httptest.NewRequest(http.MethodPost, webhooks.Path, strings.NewReader(adaDeleted))
	w = httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Error: Missing Svix headers", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, webhooks.Path, strings.NewReader(adaDeleted))
	req.Header.Set(webhooks.HeaderID, "msg_forged")
	req.Header.Set(webhooks.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(webhooks.HeaderSignature, "v1,Zm9yZ2Vk")
	w = httptest.NewRecorder()
	p.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Error: Verification error", w.Body.String())

	u, err := p.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.True(t, p.cached(t, "user:u1"))
	assert.True(t, p.cached(t, "users:list:50:0"))
}

func TestPipeline_UnrecognizedEventAcknowledged(t *testing.T) {
	p := newPipeline(t)
	p.seedCache(t)

	w := p.deliver(t, `{"type":"session.created","data":{"id":"sess_1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook received", w.Body.String())
	assert.True(t, p.cached(t, "user:u1"))
}

func TestPipeline_CacheOutageDoesNotFailDelivery(t *testing.T) {
	p := newPipeline(t)
	p.redis.Close()

	w := p.deliver(t, adaCreated)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := p.store.Get(context.Background(), "u1")
	assert.NoError(t, err)
}
