// Package notify publishes artifact-change signals to NATS so viewers outside
// the watch process can refresh.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/navsync"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher sends content-update envelopes on a NATS subject.
type Publisher struct {
	conn    Conn
	subject string
}

// NewPublisher wraps an established connection.
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Connect dials the configured NATS server.
func Connect(cfg config.NATSConfig) (*Publisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("deckbuilder"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Build()
	}
	slog.Info("NATS publisher connected", slog.String("url", cfg.URL), slog.String("subject", cfg.Subject))
	return NewPublisher(conn, cfg.Subject), nil
}

// PublishUpdate sends one content update.
func (p *Publisher) PublishUpdate(update navsync.ContentUpdate) error {
	if err := p.conn.Publish(p.subject, update.Marshal()); err != nil {
		return ferrors.WrapError(fmt.Errorf("publish %s: %w", p.subject, err), ferrors.CategoryNetwork,
			"failed to publish content update").
			WithContext("slide_id", update.Data.SlideID).
			Build()
	}
	slog.Debug("Published content update", logfields.SlideID(update.Data.SlideID), slog.String("subject", p.subject))
	return nil
}

// Run forwards ArtifactChanged events until ctx is done or the bus closes.
// Publish failures are logged and do not stop forwarding.
func (p *Publisher) Run(ctx context.Context, bus *events.Bus) {
	ch, unsubscribe := events.Subscribe[events.ArtifactChanged](bus, 16)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := p.PublishUpdate(navsync.NewContentUpdate(evt.SlideID)); err != nil {
				slog.Warn("Content update not published", logfields.SlideID(evt.SlideID), logfields.Error(err))
			}
		}
	}
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
