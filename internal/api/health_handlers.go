package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"search":   s.checkSearchIndex(),
	}
	if storage, ok := s.checkStorage(ctx); ok {
		components["storage"] = storage
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDatabase pings the relational store.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.services.Database == nil {
		return ComponentHealth{Status: "unhealthy", Message: "database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := s.services.Database.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database unreachable",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkSearchIndex reports degraded when search is unavailable; writes still work without it.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Search == nil {
		return ComponentHealth{Status: "degraded", Message: "search not configured"}
	}

	start := time.Now()
	count, err := s.services.Search.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "degraded",
			Latency: latency.String(),
			Message: "search index unavailable",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
		Message: formatDocCount(count),
	}
}

// bucketChecker is implemented by object stores that can reach a bucket remotely.
type bucketChecker interface {
	Health(ctx context.Context, bucket string) error
}

// checkStorage checks every served bucket. Local backends have nothing to check.
func (s *Server) checkStorage(ctx context.Context) (ComponentHealth, bool) {
	checker, ok := s.objects.(bucketChecker)
	if !ok {
		return ComponentHealth{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	for _, bucket := range s.config.Buckets {
		if err := checker.Health(ctx, bucket); err != nil {
			s.logger.Warn("storage health check failed", "bucket", bucket, "error", err)
			return ComponentHealth{
				Status:  "unhealthy",
				Latency: time.Since(start).String(),
				Message: "bucket " + bucket + " unreachable",
			}, true
		}
	}
	return ComponentHealth{Status: "healthy", Latency: time.Since(start).String()}, true
}

func formatDocCount(n uint64) string {
	if n == 1 {
		return "1 document"
	}
	return strconv.FormatUint(n, 10) + " documents"
}
