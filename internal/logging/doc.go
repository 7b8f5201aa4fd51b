// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or JSON), to the systemd journal when journald
// is reachable, and to an in-memory history buffer served by the API.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"session": "debug",
//			"api":     "warn",
//		},
//	})
//
// and get a logger per module:
//
//	logger := logging.GetLogger("session").With("session_id", id)
//	logger.Info("Session active")
//
// Levels can be changed at runtime with SetLevel, which the config watcher
// uses when the configuration file is edited.
//
//	journalctl -t camcore MODULE=session
package logging
