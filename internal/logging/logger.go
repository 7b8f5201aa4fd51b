package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 500

// Logger is satisfied by *slog.Logger. Packages that only emit log lines
// accept this instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex          sync.RWMutex
	loggers        = make(map[string]*slog.Logger)
	levels         = make(map[string]*slog.LevelVar)
	current        = Config{Level: "info", Format: "text"}
	globalLevelVar = &slog.LevelVar{}
	initialized    bool
	history        = NewRingBuffer(defaultBufferSize)
	onEntry        EntryCallback
)

// Initialize sets up the logging system. Loggers handed out before the call
// are rebuilt so they pick up the configured format and sinks.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	if config.Format == "" {
		config.Format = "text"
	}
	current = config
	initialized = true

	globalLevelVar.Set(resolveLevel(config.Level, slog.LevelInfo))

	for module, levelVar := range levels {
		levelVar.Set(moduleLevel(module))
		loggers[module] = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, globalLevelVar)))
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := loggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()

	if logger, ok := loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(moduleLevel(module))
	format := "text"
	if initialized {
		format = current.Format
	}

	logger = slog.New(newHandler(format, levelVar)).With("module", module)
	loggers[module] = logger
	levels[module] = levelVar
	return logger
}

// SetLevel changes a module's level at runtime. An empty module name changes
// the global level and every module without an explicit override.
func SetLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}

	mutex.Lock()
	defer mutex.Unlock()

	if module == "" {
		current.Level = level
		globalLevelVar.Set(*parsed)
		for name, levelVar := range levels {
			if _, overridden := current.Modules[name]; !overridden {
				levelVar.Set(*parsed)
			}
		}
		return true
	}

	if current.Modules == nil {
		current.Modules = make(map[string]string)
	}
	current.Modules[module] = level
	if levelVar, ok := levels[module]; ok {
		levelVar.Set(*parsed)
	}
	return true
}

// Apply re-applies levels from config without rebuilding handlers.
func Apply(config Config) {
	SetLevel("", config.Level)
	for module, level := range config.Modules {
		SetLevel(module, level)
	}
}

// History returns the in-memory buffer of recent log entries.
func History() *RingBuffer {
	return history
}

// SetEntryCallback registers a function called for every log entry.
func SetEntryCallback(callback EntryCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	onEntry = callback
}

func entryCallback() EntryCallback {
	mutex.RLock()
	defer mutex.RUnlock()
	return onEntry
}

// moduleLevel must be called with mutex held.
func moduleLevel(module string) slog.Level {
	level := resolveLevel(current.Level, slog.LevelInfo)
	if override, ok := current.Modules[module]; ok {
		level = resolveLevel(override, level)
	}
	return level
}

// newHandler builds the handler chain: stdout, journald when present, and
// the history buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{}
	if stdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(history, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout(handlers)
}

func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func resolveLevel(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
