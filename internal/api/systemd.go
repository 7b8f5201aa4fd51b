package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camcore/internal/systemd"
)

// ServiceControl reads and restarts camcore's own systemd unit.
type ServiceControl interface {
	Unit() string
	Status(ctx context.Context) (systemd.UnitStatus, error)
	Restart(ctx context.Context) error
}

type serviceStatusResponse struct {
	Body systemd.UnitStatus
}

type serviceActionResponse struct {
	Body struct {
		Unit   string `json:"unit" example:"camcore.service" doc:"Unit name"`
		Action string `json:"action" example:"restart" doc:"Requested action"`
		Queued bool   `json:"queued" doc:"Whether systemd accepted the job"`
	}
}

func (s *Server) registerSystemdRoutes() {
	svc := s.options.Service
	if svc == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service Status",
		Description: "systemd state of the camcore unit",
		Tags:        []string{"system"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*serviceStatusResponse, error) {
		st, err := svc.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &serviceStatusResponse{Body: st}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/system/service/restart",
		Summary:     "Restart Service",
		Description: "Queue a restart of the camcore unit. The camera is released as the process stops.",
		Tags:        []string{"system"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*serviceActionResponse, error) {
		if err := svc.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		s.logger.Warn("Service restart requested", "unit", svc.Unit())
		resp := &serviceActionResponse{}
		resp.Body.Unit = svc.Unit()
		resp.Body.Action = "restart"
		resp.Body.Queued = true
		return resp, nil
	})
}
