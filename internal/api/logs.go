package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camcore/internal/api/models"
	"github.com/smazurov/camcore/internal/events"
	"github.com/smazurov/camcore/internal/logging"
)

// registerLogRoutes registers log history, level control and the log stream.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Get the most recent log entries kept in memory",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0" example:"100" doc:"Maximum number of entries, 0 for all"`
	}) (*models.LogListResponse, error) {
		entries := logging.History().Tail(input.Limit)
		out := make([]models.LogEntryData, len(entries))
		for i, entry := range entries {
			ev := events.NewLogEntryEvent(entry)
			out[i] = models.LogEntryData{
				Seq:        ev.Seq,
				Timestamp:  ev.Timestamp,
				Level:      ev.Level,
				Module:     ev.Module,
				Message:    ev.Message,
				Attributes: ev.Attributes,
			}
		}
		return &models.LogListResponse{Body: models.LogListData{Entries: out, Count: len(out)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/level",
		Summary:     "Set Log Level",
		Description: "Change the global log level or the level of one module until the next config reload",
		Tags:        []string{"logs"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LogLevelRequest) (*struct{}, error) {
		if !logging.SetLevel(input.Body.Module, input.Body.Level) {
			return nil, huma.Error400BadRequest("unknown log level: " + input.Body.Level)
		}
		s.logger.Info("Log level changed", "module", input.Body.Module, "level", input.Body.Level)
		return &struct{}{}, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying history so nothing falls between the two
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var lastSeq uint64
		for _, entry := range logging.History().Tail(0) {
			if err := send.Data(events.NewLogEntryEvent(entry)); err != nil {
				return
			}
			lastSeq = entry.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// Skip entries already sent from history
				if entry, ok := event.(events.LogEntryEvent); ok && entry.Seq <= lastSeq {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
