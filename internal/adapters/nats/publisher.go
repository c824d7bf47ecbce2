package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for board telemetry and broadcast events.
const (
	subjectClientErrors  = "board.telemetry.client-error"
	subjectBoardUpdates  = "board.updates.broadcast"
	clientErrorStream    = "BOARD_TELEMETRY"
	clientErrorRetention = 24 * time.Hour
)

// Publisher implements ports.EventPublisher using NATS. Client error
// reports go through JetStream so they survive consumer downtime;
// board update broadcasts are fire-and-forget core NATS.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the telemetry stream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      clientErrorStream,
		Subjects:  []string{"board.telemetry.>"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    clientErrorRetention,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishClientError forwards a sanitized client error report.
func (p *Publisher) PublishClientError(ctx context.Context, report []byte) error {
	_, err := p.js.Publish(subjectClientErrors, report)
	return err
}

// PublishBoardUpdate broadcasts a refreshed board payload to relays.
func (p *Publisher) PublishBoardUpdate(ctx context.Context, payload []byte) error {
	return p.conn.Publish(subjectBoardUpdates, payload)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
