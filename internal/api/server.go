package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camcore/internal/api/models"
	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/dispatch"
	"github.com/smazurov/camcore/internal/events"
	"github.com/smazurov/camcore/internal/logging"
	"github.com/smazurov/camcore/internal/version"
)

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	CORSOrigin        string // Allowed origin, any when empty
	Camera            *camera.Camera
	Dispatcher        *dispatch.Dispatcher // Optional, enables the command endpoints
	EventBus          *events.Bus
	PhotoDir          string         // Base directory for relative and generated photo paths
	PrometheusHandler http.Handler   // Optional Prometheus metrics handler
	Service           ServiceControl // Optional, enables the systemd unit endpoints
}

// Server is the HTTP API of a camcore process.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	camera     *camera.Camera
	dispatcher *dispatch.Dispatcher
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger
}

// NewServer builds the API on a stdlib mux. Middleware order: CORS, so
// rejected requests still carry the headers, then request logging, so auth
// failures are logged, then basic auth when credentials are configured.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	cors := newCORSPolicy(opts.CORSOrigin)
	mux.HandleFunc("OPTIONS /", cors.preflight)

	api := humago.New(mux, apiConfig())
	api.UseMiddleware(cors.middleware)
	api.UseMiddleware(requestLogger(logging.GetLogger("http")))
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(basicAuth(api, opts.AuthUsername, opts.AuthPassword))
	}

	// Scrapers do not carry credentials.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s := &Server{
		api:        api,
		mux:        mux,
		camera:     opts.Camera,
		dispatcher: opts.Dispatcher,
		eventBus:   opts.EventBus,
		options:    opts,
		logger:     logging.GetLogger("api"),
	}
	s.registerRoutes()
	return s
}

func apiConfig() huma.Config {
	config := huma.DefaultConfig("camcore API", version.Get().Version)
	config.Info.Description = "Camera control API: sensor selection, preview and still capture"
	// No servers entry keeps OpenAPI paths relative to whatever host served them.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}
	return config
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until Stop. It returns http.ErrServerClosed after a
// clean shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting camcore API server", "addr", addr, "docs", "http://"+addr+"/docs")
	return s.httpServer.ListenAndServe()
}

// Stop waits for in-flight requests until ctx ends, then closes whatever is
// left, event streams included.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping API server")
	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return s.httpServer.Close()
	}
	return err
}

func (s *Server) registerRoutes() {
	public := []map[string][]string{}

	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    public,
	}, func(context.Context, *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{Body: models.HealthData{Status: "ok", Message: "API is healthy"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Build metadata of the running camcore",
		Tags:        []string{"system"},
		Security:    public,
	}, func(context.Context, *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerCameraRoutes()
	s.registerCommandRoutes()
	s.registerLogRoutes()
	s.registerMetricsRoutes()
	s.registerSSERoutes()
	s.registerSystemdRoutes()
}
