package users

import (
	"context"
	"time"

	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Counter is the subset of Store needed by CountJob
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// CountJob refreshes a gauge with the number of stored users
type CountJob struct {
	store   Counter
	gauge   prometheus.Gauge
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewCountJob creates a new count job
func NewCountJob(store Counter, gauge prometheus.Gauge, logger logrus.FieldLogger) *CountJob {
	return &CountJob{
		store:   store,
		gauge:   gauge,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Run implements cron.Job
func (j *CountJob) Run() {
	defer observability.RecoverPanic(j.logger, "user count job")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.store.Count(ctx)
	if err != nil {
		j.logger.WithError(err).Warn("Failed to count users")
		return
	}
	j.gauge.Set(float64(n))
}

// Schedule registers the job on c with a cron spec such as "@every 1m"
func (j *CountJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddJob(spec, j)
}
