package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camcore/internal/api/models"
)

// registerCommandRoutes exposes the named-operation surface shared with the
// NATS command channel.
func (s *Server) registerCommandRoutes() {
	if s.dispatcher == nil {
		s.logger.Debug("Dispatcher not available, skipping command routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-commands",
		Method:      http.MethodGet,
		Path:        "/api/commands",
		Summary:     "List Commands",
		Description: "List the operation names accepted by the command endpoint",
		Tags:        []string{"commands"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MethodListResponse, error) {
		return &models.MethodListResponse{
			Body: models.MethodListData{Methods: s.dispatcher.Methods()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "call-command",
		Method:      http.MethodPost,
		Path:        "/api/commands/{method}",
		Summary:     "Call Command",
		Description: "Run a camera operation by name with named arguments, as the command channel does",
		Tags:        []string{"commands"},
		Errors:      []int{400, 401, 403, 409, 500, 501, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CommandRequest) (*models.CommandResponse, error) {
		result, err := s.dispatcher.Call(ctx, input.Method, input.Body.Args)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.CommandResponse{
			Body: models.CommandData{Method: input.Method, Result: result},
		}, nil
	})
}
