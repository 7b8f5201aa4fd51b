package nats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// RandomPort asks the embedded server to pick a free port.
const RandomPort = server.RANDOM_PORT

const (
	defaultPort    = 4222
	defaultHost    = "127.0.0.1"
	defaultName    = "camcore"
	readyTimeout   = 5 * time.Second
	maxCommandSize = 64 * 1024
)

// ServerOptions configures the embedded NATS server. Zero fields take the
// defaults: 127.0.0.1:4222, no auth.
type ServerOptions struct {
	Port int
	Host string
	Name string
	// Token, when set, is required from every client. The bridge and the
	// CLI pass it with nats.Token.
	Token  string
	Logger *slog.Logger
}

// Server is the embedded broker that carries camera commands and events.
type Server struct {
	ns     *server.Server
	opts   ServerOptions
	logger *slog.Logger
}

// NewServer prepares an embedded server; Start brings it up.
func NewServer(opts ServerOptions) *Server {
	opts.Port = orDefault(opts.Port, defaultPort)
	opts.Host = orDefault(opts.Host, defaultHost)
	opts.Name = orDefault(opts.Name, defaultName)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger.With("component", "nats-server")}
}

func orDefault[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

// Start runs the server and blocks until it accepts connections. Payloads
// are capped: commands and replies are small JSON documents and photos
// travel as file paths.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		Host:           s.opts.Host,
		Port:           s.opts.Port,
		ServerName:     s.opts.Name,
		Authorization:  s.opts.Token,
		NoSigs:         true,
		MaxControlLine: 4096,
		MaxPayload:     maxCommandSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}
	ns.SetLogger(serverLog{s.logger}, true, false)

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return errors.New("NATS server not ready within " + readyTimeout.String())
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", s.ClientURL(), "auth", s.opts.Token != "")
	return nil
}

// Stop shuts the server down and waits for it to finish.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server", "clients", s.ns.NumClients())
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL is the URL clients connect to. Before Start it is built from
// the options.
func (s *Server) ClientURL() string {
	if s.ns != nil {
		return s.ns.ClientURL()
	}
	return fmt.Sprintf("nats://%s:%d", s.opts.Host, s.opts.Port)
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// serverLog routes the broker's own log lines into slog. Fatal lines are
// logged as errors; the broker never exits the process.
type serverLog struct{ l *slog.Logger }

func (s serverLog) Noticef(format string, v ...any) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s serverLog) Warnf(format string, v ...any)   { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s serverLog) Fatalf(format string, v ...any)  { s.l.Error(fmt.Sprintf(format, v...)) }
func (s serverLog) Errorf(format string, v ...any)  { s.l.Error(fmt.Sprintf(format, v...)) }
func (s serverLog) Debugf(format string, v ...any)  { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s serverLog) Tracef(string, ...any)           {}
