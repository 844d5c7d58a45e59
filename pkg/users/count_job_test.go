package users

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingCounter struct{}

func (panickingCounter) Count(ctx context.Context) (int64, error) {
	panic("counter exploded")
}

func newGauge() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_users_total"})
}

func TestCountJob_Run(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"u1", "u2"} {
		_, err := store.Upsert(context.Background(), &User{ID: id, UpdatedAt: time.Now()})
		require.NoError(t, err)
	}
	gauge := newGauge()

	NewCountJob(store, gauge, quietLogger()).Run()

	assert.Equal(t, 2.0, testutil.ToFloat64(gauge))
}

func TestCountJob_Run_KeepsLastValueOnError(t *testing.T) {
	store := newMemStore()
	gauge := newGauge()
	gauge.Set(7)
	store.err = errBoom

	NewCountJob(store, gauge, quietLogger()).Run()

	assert.Equal(t, 7.0, testutil.ToFloat64(gauge))
}

func TestCountJob_Run_RecoversPanic(t *testing.T) {
	job := NewCountJob(panickingCounter{}, newGauge(), quietLogger())

	assert.NotPanics(t, job.Run)
}

func TestCountJob_Schedule(t *testing.T) {
	c := cron.New()
	job := NewCountJob(newMemStore(), newGauge(), quietLogger())

	id, err := job.Schedule(c, "@every 1m")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = job.Schedule(c, "not a spec")
	assert.Error(t, err)
}
