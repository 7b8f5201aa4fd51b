package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/events"
)

// registerSSERoutes registers the camera event stream.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		s.logger.Debug("Event bus not available, skipping event stream")
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session transitions, preview requests, photo results and sensor switches. The first message is the current camera status.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"status":          camera.Status{},
		"session-state":   events.SessionStateChangedEvent{},
		"preview-request": events.PreviewRequestEvent{},
		"photo-captured":  events.PhotoCapturedEvent{},
		"photo-failed":    events.PhotoFailedEvent{},
		"sensor-switched": events.SensorSwitchedEvent{},
		"listener-failed": events.ListenerFailedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PreviewRequestEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PhotoCapturedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PhotoFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SensorSwitchedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ListenerFailedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if s.camera != nil {
			if err := send.Data(s.camera.Status()); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
