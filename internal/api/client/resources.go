package client

import (
	"context"
	"encoding/json"

	"github.com/spec-kit/trader-console/internal/api/dto"
)

// Resources issues the passive data reads and writes of the console. Every call
// goes through the gateway, so it carries the current credential.
type Resources struct {
	transport Transport
}

// NewResources constructs the client.
func NewResources(transport Transport) *Resources {
	return &Resources{transport: transport}
}

func (r *Resources) Health(ctx context.Context) (dto.HealthStatus, error) {
	var out dto.HealthStatus
	err := r.transport.Get(ctx, "/health", &out)
	return out, err
}

func (r *Resources) Positions(ctx context.Context) ([]dto.Position, error) {
	var out []dto.Position
	err := r.transport.Get(ctx, "/positions", &out)
	return out, err
}

func (r *Resources) DashboardStats(ctx context.Context) (dto.DashboardStats, error) {
	var out dto.DashboardStats
	err := r.transport.Get(ctx, "/dashboard/stats", &out)
	return out, err
}

// Settings reads the configuration object without interpreting it.
func (r *Resources) Settings(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.transport.Get(ctx, "/config", &out)
	return out, err
}

// UpdateSettings writes the configuration object and returns what the backend stored.
func (r *Resources) UpdateSettings(ctx context.Context, settings json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.transport.Put(ctx, "/config", settings, &out)
	return out, err
}

func (r *Resources) SystemLogs(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.transport.Get(ctx, "/logs/system", &out)
	return out, err
}

func (r *Resources) Queue(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.transport.Get(ctx, "/queue", &out)
	return out, err
}

func (r *Resources) Analytics(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.transport.Get(ctx, "/analytics", &out)
	return out, err
}
