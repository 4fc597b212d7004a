// Package notify publishes build-completed events.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/shadowjar/internal/config"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// BuildCompleted is published after an artifact has been recorded in the catalog.
type BuildCompleted struct {
	RunID            string    `json:"run_id"`
	Flavor           string    `json:"flavor"`
	Version          string    `json:"version"`
	RequestedVersion string    `json:"requested_version"`
	Artifact         string    `json:"artifact"`
	DurationMS       int64     `json:"duration_ms"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error
	Close() error
}

// NoopPublisher discards events (default when events.nats_url is empty).
type NoopPublisher struct{}

func (NoopPublisher) PublishBuildCompleted(context.Context, BuildCompleted) error { return nil }
func (NoopPublisher) Close() error                                                { return nil }

// NATSPublisher publishes JSON events on a core NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url. The connection reconnects indefinitely
// after the initial connect succeeds.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("shadowjar"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", logfields.URL(c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).Build()
	}
	slog.Info("NATS publisher connected", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// PublishBuildCompleted publishes ev and flushes within ctx.
func (p *NATSPublisher) PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish event").
			WithContext("subject", p.subject).Build()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to flush event").
			WithContext("subject", p.subject).Build()
	}
	slog.Debug("Published build event",
		logfields.Flavor(ev.Flavor),
		logfields.Version(ev.Version),
		logfields.RunID(ev.RunID))
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Encode renders ev as the JSON wire payload.
func Encode(ev BuildCompleted) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to marshal event").Build()
	}
	return data, nil
}

// FromConfig returns a NATS publisher when events are configured, and a
// NoopPublisher when they are not or the server cannot be reached.
func FromConfig(cfg config.EventsConfig) Publisher {
	if cfg.NATSURL == "" {
		return NoopPublisher{}
	}
	pub, err := NewNATSPublisher(cfg.NATSURL, cfg.Subject)
	if err != nil {
		slog.Warn("Build events disabled; NATS unavailable",
			logfields.URL(cfg.NATSURL), logfields.Error(err))
		return NoopPublisher{}
	}
	return pub
}
