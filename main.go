package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/camcore/cmd"
	"github.com/smazurov/camcore/internal/api"
	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/config"
	"github.com/smazurov/camcore/internal/dispatch"
	"github.com/smazurov/camcore/internal/events"
	"github.com/smazurov/camcore/internal/led"
	"github.com/smazurov/camcore/internal/logging"
	"github.com/smazurov/camcore/internal/metrics"
	"github.com/smazurov/camcore/internal/nats"
	"github.com/smazurov/camcore/internal/sim"
	"github.com/smazurov/camcore/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Origin allowed to call the API, any when empty" default:"" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Camera settings
	CameraSensorsFile string `help:"Simulated sensor catalog" default:"sensors.toml" toml:"camera.sensors_file" env:"CAMERA_SENSORS_FILE"`
	CameraPhotoDir    string `help:"Directory for relative and generated photo paths" default:"photos" toml:"camera.photo_dir" env:"CAMERA_PHOTO_DIR"`
	CameraSensor      string `help:"Sensor opened by auto start (FRONT, BACK)" default:"BACK" toml:"camera.sensor" env:"CAMERA_SENSOR"`
	CameraAutoStart   bool   `help:"Initialize and start the camera on boot" default:"false" toml:"camera.auto_start" env:"CAMERA_AUTO_START"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesIndicator    bool   `help:"Light an LED while the camera is capturing" default:"false" toml:"features.indicator_enabled" env:"FEATURES_INDICATOR"`
	FeaturesIndicatorLED string `help:"LED under /sys/class/leds for the indicator, detected from the board when empty" default:"" toml:"features.indicator_led" env:"FEATURES_INDICATOR_LED"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`

	// Command channel settings
	NATSEnabled     bool   `help:"Run the embedded NATS command channel" default:"true" toml:"nats.enabled" env:"NATS_ENABLED"`
	NATSPort        int    `help:"NATS client port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NATSCallTimeout string `help:"Timeout for one command, including photo capture" default:"30s" toml:"nats.call_timeout" env:"NATS_CALL_TIMEOUT"`
	NATSToken       string `help:"Token NATS clients must present, none when empty" default:"" toml:"nats.token" env:"NATS_TOKEN"`

	// systemd settings
	SystemdUnit    string `help:"Unit name for the service endpoints, disabled when empty" default:"camcore.service" toml:"systemd.unit" env:"SYSTEMD_UNIT"`
	SystemdUserBus bool   `help:"Reach the unit over the user bus instead of the system bus" default:"false" toml:"systemd.user_bus" env:"SYSTEMD_USER_BUS"`

	// Logging settings. Per-module levels live in the [logging] table of the
	// config file and are reloaded when it changes.
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		stopLogEvents := events.PublishLogs(eventBus)

		catalog, err := sim.LoadCatalog(opts.CameraSensorsFile)
		if err != nil {
			logger.Error("Failed to load sensor catalog", "error", err, "file", opts.CameraSensorsFile)
			os.Exit(1)
		}
		platform := sim.NewPlatform(catalog)
		cam := camera.New(platform.CameraOptions(events.NewCameraObserver(eventBus)))

		if mkErr := os.MkdirAll(opts.CameraPhotoDir, 0o755); mkErr != nil {
			logger.Warn("Failed to create photo directory", "error", mkErr, "dir", opts.CameraPhotoDir)
		}

		recorder := metrics.NewRecorder(eventBus, logging.GetLogger("metrics"))
		dispatcher := dispatch.New(cam, dispatch.Options{PhotoDir: opts.CameraPhotoDir})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			CORSOrigin:   opts.CORSOrigin,
			Camera:       cam,
			Dispatcher:   dispatcher,
			EventBus:     eventBus,
			PhotoDir:     opts.CameraPhotoDir,
		}
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}
		var unitManager *systemd.Manager
		if opts.SystemdUnit != "" {
			connectCtx, cancelConnect := context.WithTimeout(context.Background(), 2*time.Second)
			m, dbusErr := systemd.NewManager(connectCtx, opts.SystemdUnit, opts.SystemdUserBus)
			cancelConnect()
			if dbusErr != nil {
				logger.Debug("systemd service endpoints disabled", "error", dbusErr)
			} else {
				unitManager = m
				apiOpts.Service = m
			}
		}
		server := api.NewServer(apiOpts)

		var indicator *led.Indicator
		if opts.FeaturesIndicator {
			ledLogger := logging.GetLogger("led")
			indicator = led.NewIndicator(led.New(opts.FeaturesIndicatorLED, ledLogger), eventBus, ledLogger)
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		watchdogCtx, stopWatchdog := context.WithCancel(context.Background())

		var natsServer *nats.Server
		var bridge *nats.Bridge
		var watcher *config.Watcher[logging.Config]

		var stopStatus func()

		hooks.OnStart(func() {
			recorder.Start()
			stopStatus = eventBus.Subscribe(func(e events.SessionStateChangedEvent) {
				notifier.Status(fmt.Sprintf("%s camera %s", e.Sensor, e.To))
			})
			if indicator != nil {
				indicator.Start()
			}

			if opts.NATSEnabled {
				natsServer = nats.NewServer(nats.ServerOptions{
					Port:   opts.NATSPort,
					Token:  opts.NATSToken,
					Logger: logging.GetLogger("nats"),
				})
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start NATS server", "error", startErr)
					os.Exit(1)
				}

				callTimeout, parseErr := time.ParseDuration(opts.NATSCallTimeout)
				if parseErr != nil {
					callTimeout = 30 * time.Second
				}
				bridge = nats.NewBridge(natsServer.ClientURL(), dispatcher, eventBus, nats.BridgeOptions{
					CallTimeout: callTimeout,
					Token:       opts.NATSToken,
					Logger:      logging.GetLogger("nats"),
				})
				if startErr := bridge.Start(); startErr != nil {
					logger.Error("Failed to start NATS bridge", "error", startErr)
					os.Exit(1)
				}
			}

			if _, statErr := os.Stat(opts.Config); statErr == nil {
				w, watchErr := config.WatchLogging(opts.Config, logging.GetLogger("config"))
				if watchErr != nil {
					logger.Warn("Config hot reload disabled", "error", watchErr)
				} else {
					watcher = w
				}
			}

			if opts.CameraAutoStart {
				go autoStart(cam, opts.CameraSensor, logger)
			}

			go notifier.Watchdog(watchdogCtx)
			notifier.Ready()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			stopWatchdog()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop accepting commands before the camera goes away
			if bridge != nil {
				bridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}

			if closeErr := cam.Close(ctx); closeErr != nil {
				logger.Warn("Error closing camera", "error", closeErr)
			}
			platform.Close()
			if indicator != nil {
				indicator.Stop()
			}
			if stopStatus != nil {
				stopStatus()
			}
			if unitManager != nil {
				unitManager.Close()
			}
			recorder.Stop()
			stopLogEvents()
		})
	})

	cli.Root().AddCommand(cmd.CreateSensorsCmd())
	cli.Root().AddCommand(cmd.CreateSnapCmd())
	cli.Root().AddCommand(cmd.CreateCallCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())

	// Run the CLI
	cli.Run()
}

// autoStart brings the camera up the way a client would: permission check,
// init, start.
func autoStart(cam *camera.Camera, sensorName string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sensor, err := camera.ParseSensor(sensorName)
	if err != nil {
		logger.Error("Auto start failed", "error", err)
		return
	}
	missing, err := cam.CheckPermissions()
	if err != nil || len(missing) > 0 {
		logger.Error("Auto start failed, permissions missing", "missing", missing, "error", err)
		return
	}
	if err := cam.Init(ctx, sensor); err != nil {
		logger.Error("Auto start failed", "error", err)
		return
	}
	if err := cam.Start(ctx); err != nil {
		logger.Error("Auto start failed", "error", err)
		return
	}
	if err := cam.AwaitActive(ctx); err != nil {
		logger.Error("Camera did not become active", "error", err)
		return
	}
	logger.Info("Camera started", "sensor", sensor)
}
