package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/sirupsen/logrus"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "users"

// invalidateTimeout bounds one cache invalidation triggered by an event
const invalidateTimeout = 5 * time.Second

// ErrNoURL is returned by Connect when no server URL is given
var ErrNoURL = errors.New("nats url is required")

// Conn is the subset of *nats.Conn used by the publisher
type Conn interface {
	PublishMsg(m *nats.Msg) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes user events to NATS subjects
type NATSPublisher struct {
	conn   Conn
	prefix string
	now    func() time.Time
	logger logrus.FieldLogger
}

// Connect dials url and returns a publisher using prefix for its subjects
func Connect(url, prefix string, logger logrus.FieldLogger) (*NATSPublisher, error) {
	if url == "" {
		return nil, ErrNoURL
	}

	nc, err := nats.Connect(url,
		nats.Name("usersync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrlRedacted()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.WithField("url", nc.ConnectedUrlRedacted()).Info("Connected to NATS")
	return NewNATSPublisher(nc, prefix, logger), nil
}

// NewNATSPublisher wraps an existing connection
func NewNATSPublisher(conn Conn, prefix string, logger logrus.FieldLogger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// Subject returns the full subject for an event suffix
func (p *NATSPublisher) Subject(suffix string) string {
	return p.prefix + "." + suffix
}

// PublishUserSynced publishes UserSynced for u
func (p *NATSPublisher) PublishUserSynced(ctx context.Context, u *users.User) error {
	return p.publish(ctx, suffixSynced, UserSynced{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.Name,
		SyncedAt:    p.now().UTC(),
	})
}

// PublishUserDeleted publishes UserDeleted for id
func (p *NATSPublisher) PublishUserDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, suffixDeleted, UserDeleted{
		UserID:    id,
		DeletedAt: p.now().UTC(),
	})
}

func (p *NATSPublisher) publish(ctx context.Context, suffix string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", suffix, err)
	}

	msg := nats.NewMsg(p.Subject(suffix))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Subject, err)
	}

	p.logger.WithField("subject", msg.Subject).Debug("Published event")
	return nil
}

// InvalidateOnEvents subscribes to every event under the prefix, including
// this instance's own, and drops the named user's entries from inv.
// Subscriptions end when the publisher is closed.
func (p *NATSPublisher) InvalidateOnEvents(inv users.Invalidator) error {
	subject := p.Subject("*")
	if _, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		p.invalidate(inv, msg)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	p.logger.WithField("subject", subject).Info("Invalidating local cache on user events")
	return nil
}

func (p *NATSPublisher) invalidate(inv users.Invalidator, msg *nats.Msg) {
	logger := p.logger.WithField("subject", msg.Subject)

	var event struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(msg.Data, &event); err != nil || event.UserID == "" {
		logger.WithError(err).Warn("Ignoring user event without a user id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()
	if err := inv.InvalidateTags(ctx, users.GlobalTag(), users.IDTag(event.UserID)); err != nil {
		logger.WithError(err).WithField("user_id", event.UserID).Warn("Failed to invalidate cached user")
		return
	}
	logger.WithField("user_id", event.UserID).Debug("Invalidated cached user")
}

// Flush blocks until the server has acknowledged every buffered message
func (p *NATSPublisher) Flush(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
