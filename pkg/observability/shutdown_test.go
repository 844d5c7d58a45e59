package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewShutdownManager(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	sm := NewShutdownManager(logger, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)

	sm = NewShutdownManager(logger, 2*time.Second, &http.Server{}, &http.Server{})
	assert.Equal(t, 2*time.Second, sm.shutdownTimeout)
	assert.Len(t, sm.servers, 2)

	sm.AddServers(&http.Server{})
	assert.Len(t, sm.servers, 3)
}

func TestShutdownManager_Shutdown(t *testing.T) {
	t.Run("runs every shutdown func", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		sm := NewShutdownManager(logger, time.Second, &http.Server{}, nil)

		var calls int32
		for i := 0; i < 3; i++ {
			sm.RegisterShutdownFunc(func(ctx context.Context) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}

		assert.NoError(t, sm.Shutdown(context.Background()))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("reports failed funcs", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		sm := NewShutdownManager(logger, time.Second)
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return errors.New("close failed") })
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })

		err := sm.Shutdown(context.Background())
		assert.EqualError(t, err, "shutdown completed with 1 errors")
	})

	t.Run("unstarted servers added later", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		sm := NewShutdownManager(logger, time.Second)

		var closed atomic.Bool
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			closed.Store(true)
			return nil
		})
		sm.AddServers(&http.Server{Addr: "127.0.0.1:0"})

		assert.NoError(t, sm.Shutdown(context.Background()))
		assert.True(t, closed.Load())
	})

	t.Run("times out slow funcs", func(t *testing.T) {
		logger := NewLogger(InfoLevel, &bytes.Buffer{})
		sm := NewShutdownManager(logger, 50*time.Millisecond)
		release := make(chan struct{})
		defer close(release)
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			<-release
			return nil
		})

		err := sm.Shutdown(context.Background())
		assert.EqualError(t, err, "shutdown timeout reached")
	})
}

func TestShutdownManager_WaitForShutdown(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, time.Second)

	var called atomic.Bool
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		called.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sm.WaitForShutdown(ctx))
	assert.True(t, called.Load())
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "test job")
		panic("boom")
	}()

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "test job", entry["context"])
	assert.Equal(t, "PANIC recovered", entry["msg"])
}
