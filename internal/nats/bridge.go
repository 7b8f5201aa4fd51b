package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/camcore/internal/dispatch"
	"github.com/smazurov/camcore/internal/events"
)

// Caller runs a named camera operation.
type Caller interface {
	Call(ctx context.Context, method string, args dispatch.Args) (any, error)
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// CallTimeout bounds each command, including waiting for a photo.
	CallTimeout time.Duration
	// Token authenticates against a server started with one.
	Token  string
	Logger *slog.Logger
}

// Bridge serves camera commands on camcore.rpc.* and republishes event bus
// traffic on camcore.events.*.
type Bridge struct {
	url      string
	caller   Caller
	eventBus *events.Bus
	timeout  time.Duration
	token    string
	conn     *nats.Conn
	subs     []*nats.Subscription
	unsubs   []func()
	logger   *slog.Logger
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBridge creates a bridge between NATS, a command caller and the event
// bus. eventBus may be nil to serve commands only.
func NewBridge(url string, caller Caller, eventBus *events.Bus, opts BridgeOptions) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Bridge{
		url:      url,
		caller:   caller,
		eventBus: eventBus,
		timeout:  timeout,
		token:    opts.Token,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS, subscribes to command subjects and begins
// forwarding events.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := []nats.Option{
		nats.Name("camcore-bridge"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	}
	if b.token != "" {
		opts = append(opts, nats.Token(b.token))
	}
	conn, err := nats.Connect(b.url, opts...)
	if err != nil {
		return err
	}
	b.conn = conn
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.logger.Info("NATS bridge connected", "url", b.url)

	sub, err := conn.QueueSubscribe(SubjectRPCPrefix+".*", commandQueue, b.handleCommand)
	if err != nil {
		b.cleanup()
		return err
	}
	b.subs = append(b.subs, sub)

	if b.eventBus != nil {
		b.forwardEvents()
	}

	b.logger.Info("NATS bridge serving commands", "subject", SubjectRPCPrefix+".*")
	return nil
}

// handleCommand runs each request on its own goroutine: takePhoto blocks
// until the capture resolves and must not hold up other callers.
func (b *Bridge) handleCommand(msg *nats.Msg) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.serve(msg)
	}()
}

func (b *Bridge) serve(msg *nats.Msg) {
	method := methodFromSubject(msg.Subject)

	var reply ReplyMessage
	cmd, err := UnmarshalCommand(msg.Data)
	if err != nil {
		b.logger.Warn("Failed to unmarshal command", "error", err, "subject", msg.Subject)
		reply = ReplyMessage{Error: &ErrorBody{Code: "INVALID_REQUEST", Message: "malformed command", Details: err.Error()}}
	} else {
		ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
		result, callErr := b.caller.Call(ctx, method, cmd.Args)
		cancel()
		reply = newReply(result, callErr)
	}

	if msg.Reply == "" {
		return
	}
	data, err := reply.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal reply", "method", method, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		b.logger.Warn("Failed to send reply", "method", method, "error", err)
	}
	b.logger.Debug("Command served", "method", method, "ok", reply.OK)
}

// forwardEvents must be called with mu held.
func (b *Bridge) forwardEvents() {
	ch := make(chan any, 256)
	b.unsubs = append(b.unsubs,
		events.SubscribeToChannel[events.SessionStateChangedEvent](b.eventBus, ch),
		events.SubscribeToChannel[events.PreviewRequestEvent](b.eventBus, ch),
		events.SubscribeToChannel[events.PhotoCapturedEvent](b.eventBus, ch),
		events.SubscribeToChannel[events.PhotoFailedEvent](b.eventBus, ch),
		events.SubscribeToChannel[events.SensorSwitchedEvent](b.eventBus, ch),
		events.SubscribeToChannel[events.ListenerFailedEvent](b.eventBus, ch),
		events.SubscribeToChannel[events.LogEntryEvent](b.eventBus, ch),
	)

	conn := b.conn
	ctx := b.ctx
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case item := <-ch:
				ev, ok := item.(events.Event)
				if !ok {
					continue
				}
				// Only significant log lines leave the process.
				if entry, isLog := ev.(events.LogEntryEvent); isLog && entry.Level != "warn" && entry.Level != "error" {
					continue
				}
				b.publishEvent(conn, ev)
			}
		}
	}()
}

func (b *Bridge) publishEvent(conn *nats.Conn, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("Failed to marshal event", "error", err)
		return
	}
	name := EventName(ev)
	data, err := EventMessage{Name: name, Data: payload}.Marshal()
	if err != nil {
		return
	}
	if err := conn.Publish(SubjectEvent(name), data); err != nil {
		b.logger.Debug("Failed to publish event", "name", name, "error", err)
	}
}

// cleanup unsubscribes and closes the connection. Must be called with mu
// held.
func (b *Bridge) cleanup() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil

	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil

	if b.cancel != nil {
		b.cancel()
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Stop closes the bridge and waits for in-flight commands. Commands still
// running see their context cancelled.
func (b *Bridge) Stop() {
	b.mu.Lock()
	b.cleanup()
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected reports whether the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
