package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// CommandClient sends camera commands over NATS and listens to camera
// events. It is what the `camcore call` subcommand and other processes use
// to drive a running camcore.
type CommandClient struct {
	url    string
	token  string
	conn   *nats.Conn
	logger *slog.Logger
	mu     sync.RWMutex
}

// ClientOption customizes a CommandClient.
type ClientOption func(*CommandClient)

// WithToken authenticates with token.
func WithToken(token string) ClientOption {
	return func(c *CommandClient) { c.token = token }
}

// NewCommandClient creates a client for the server at url. Call Connect
// before use.
func NewCommandClient(url string, logger *slog.Logger, opts ...ClientOption) *CommandClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CommandClient{
		url:    url,
		logger: logger.With("component", "nats-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the connection.
func (c *CommandClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name("camcore-client"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		return err
	}
	c.conn = conn
	c.logger.Debug("Connected to NATS", "url", c.url)
	return nil
}

// Call invokes method with args and waits for the reply, bounded by ctx.
// A failed call returns a *camera.Error carrying the remote code.
func (c *CommandClient) Call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	data, err := CommandMessage{Args: args, Timestamp: time.Now().UTC().Format(time.RFC3339)}.Marshal()
	if err != nil {
		return nil, err
	}

	msg, err := conn.RequestWithContext(ctx, SubjectRPC(method), data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", method, err)
	}

	reply, err := UnmarshalReply(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid reply to %s: %w", method, err)
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply.Result, nil
}

// SubscribeEvents delivers every camera event to handler until the returned
// function is called.
func (c *CommandClient) SubscribeEvents(handler func(EventMessage)) (func(), error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	sub, err := conn.Subscribe(SubjectEventsPrefix+".>", func(msg *nats.Msg) {
		ev, err := UnmarshalEvent(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal event", "error", err, "subject", msg.Subject)
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// IsConnected reports whether the client is connected.
func (c *CommandClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close closes the connection.
func (c *CommandClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.logger.Debug("NATS client closed")
}
