// Package notify delivers inventory lifecycle events to external listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/rpggio/tally/internal/domain/inventory"
)

// DefaultSubjectPrefix is prepended to the event type to form the subject.
const DefaultSubjectPrefix = "tally.events"

// NATSPublisher publishes events as JSON on "<prefix>.<event type>".
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url, nats.Name("tally"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger.Info("nats connected", "url", url, "prefix", prefix)
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(typ inventory.EventType) string {
	return p.prefix + "." + string(typ)
}

// Publish sends the event. Delivery is fire-and-forget; a nil error means
// the message was buffered for the server.
func (p *NATSPublisher) Publish(ctx context.Context, ev inventory.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
