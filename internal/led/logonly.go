package led

import "log/slog"

// logOnly stands in for boards without a usable LED: the indicator still
// runs and its transitions show up in the debug log.
type logOnly struct {
	logger *slog.Logger
}

func newLogOnly(logger *slog.Logger) *logOnly {
	return &logOnly{logger: logger}
}

func (l *logOnly) Set(led string, on bool, pattern Pattern) error {
	l.logger.Debug("Indicator changed (no LED)", "led", led, "on", on, "pattern", string(pattern))
	return nil
}

func (l *logOnly) Available() []string {
	return nil
}
