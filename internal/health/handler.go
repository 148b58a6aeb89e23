// Package health reports whether the service can reach its backends.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds each dependency check.
const pingTimeout = 2 * time.Second

// Checker reports connectivity of one dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker pings a Redis client.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a Redis checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler serves the health endpoint.
type Handler struct {
	store  Checker
	events Checker
}

// NewHandler creates a handler. events may be nil when events stay
// in-process.
func NewHandler(store, events Checker) *Handler {
	return &Handler{store: store, events: events}
}

// Response is the health report.
type Response struct {
	Body struct {
		Status string `json:"status"           enum:"ok,degraded"`
		Store  string `json:"store"            enum:"healthy,unhealthy"`
		Events string `json:"events,omitempty" enum:"healthy,unhealthy"`
	}
}

// Check pings every dependency. It always answers 200; a failing
// dependency turns the status to degraded.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Store = h.ping(ctx, h.store, &resp.Body.Status)

	if h.events != nil {
		resp.Body.Events = h.ping(ctx, h.events, &resp.Body.Status)
	}

	return resp, nil
}

func (h *Handler) ping(ctx context.Context, c Checker, status *string) string {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		*status = "degraded"

		return "unhealthy"
	}

	return "healthy"
}

// RegisterRoutes registers the health route.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
	}, h.Check)
}
