package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/errgroup"

	"github.com/librisapp/libris-server/internal/cache"
)

// Component statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

const healthTimeout = 2 * time.Second

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
	Status  string `json:"status" doc:"Component status: healthy, degraded, unhealthy or disabled"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for huma.
type HealthOutput struct {
	Body HealthResponse
}

// handleHealthCheck probes every backend concurrently. The database decides
// overall health; cache and search problems only degrade it since requests
// still succeed without them.
func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		components = make(map[string]ComponentHealth, 3)
	)
	record := func(name string, h ComponentHealth) {
		mu.Lock()
		components[name] = h
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error { record("database", s.checkDatabase(ctx)); return nil })
	g.Go(func() error { record("cache", s.checkCache(ctx)); return nil })
	g.Go(func() error { record("search", s.checkSearchIndex()); return nil })
	_ = g.Wait()

	overall := statusHealthy
	if components["database"].Status != statusHealthy {
		overall = statusUnhealthy
	} else {
		for _, name := range []string{"cache", "search"} {
			if st := components[name].Status; st == statusUnhealthy || st == statusDegraded {
				overall = statusDegraded
			}
		}
	}

	return &HealthOutput{Body: HealthResponse{Status: overall, Components: components}}, nil
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.backends.Store == nil {
		return ComponentHealth{Status: statusDegraded, Message: "database not configured"}
	}
	start := time.Now()
	err := s.backends.Store.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		s.logger.Warn("health: database ping failed", "error", err)
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: "database ping failed"}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}

func (s *Server) checkCache(ctx context.Context) ComponentHealth {
	c := s.backends.Cache
	if c == nil {
		return ComponentHealth{Status: statusDisabled}
	}
	if _, ok := c.(cache.Noop); ok {
		return ComponentHealth{Status: statusDisabled}
	}
	start := time.Now()
	err := c.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		msg := "cache ping failed"
		if errors.Is(err, cache.ErrUnavailable) {
			msg = "circuit breaker open"
		}
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: msg}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}

func (s *Server) checkSearchIndex() ComponentHealth {
	if s.backends.Search == nil {
		return ComponentHealth{Status: statusDisabled}
	}
	start := time.Now()
	count, err := s.backends.Search.Count()
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: "index unreadable"}
	}
	if count == 0 {
		return ComponentHealth{Status: statusDegraded, Latency: latency.String(), Message: "index is empty"}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency.String()}
}
