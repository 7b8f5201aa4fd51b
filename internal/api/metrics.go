package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camcore/internal/metrics"
)

type metricsResponse struct {
	Body metrics.Snapshot
}

// registerMetricsRoutes registers the JSON counter summary. Full metrics are
// served in Prometheus format on /metrics.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Summary",
		Description: "Get running totals of preview requests, photos, sensor switches and command calls",
		Tags:        []string{"metrics"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*metricsResponse, error) {
		return &metricsResponse{Body: metrics.Totals()}, nil
	})
}
