// Package broker is the outbound publisher the Outbox Relay (C13) uses to
// deliver graph-mutation events. Grounded on the teacher's
// internal/handlers/websocket.go broadcast hub — same envelope shape
// (type + payload, marshaled once, written under a per-connection mutex)
// — turned around into a single outbound client connection with
// reconnect/backoff instead of a server accepting many inbound ones.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
)

// Envelope is the wire message published to the broker, mirroring
// WebSocketHandler's WSMessage{Type, Payload} shape.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is a reconnecting websocket publisher. One Client per relay
// partition (§4.11, §5: "outbox relay is a single-writer-per-partition
// loop; multiple partitions allowed").
type Client struct {
	url    string
	cfg    common.BrokerConfig
	logger arbor.ILogger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Client. Dialing is lazy: the first Publish call connects.
func New(cfg common.BrokerConfig, logger arbor.ILogger) *Client {
	return &Client{url: cfg.URL, cfg: cfg, logger: logger}
}

// Publish sends one envelope with persistent delivery semantics: it
// reconnects with exponential backoff (bounded by ReconnectMinMs/MaxMs)
// until ctx is cancelled or the write succeeds.
func (c *Client) Publish(ctx context.Context, eventType string, payload []byte) error {
	envelope, err := json.Marshal(Envelope{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("broker: marshal envelope: %w", err)
	}

	backoff := time.Duration(c.cfg.ReconnectMinMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := time.Duration(c.cfg.ReconnectMaxMs) * time.Millisecond
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	for {
		if err := c.writeOnce(ctx, envelope); err == nil {
			return nil
		} else {
			c.logger.Warn().Err(err).Str("url", c.url).Msg("broker: publish failed, will retry")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) writeOnce(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
		conn, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return fmt.Errorf("broker: dial: %w", err)
		}
		c.conn = conn
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("broker: write: %w", err)
	}
	return nil
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
