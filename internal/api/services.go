package api

import (
	"context"

	"github.com/colorbook/colorbook-server/internal/service"
	"github.com/colorbook/colorbook-server/internal/sse"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the business logic used by the API server.
type Services struct {
	Category *service.CategoryService
	Page     *service.ColoringPageService
	Tag      *service.TagService
	Search   *service.SearchService // nil disables search routes
	Events   *sse.Manager           // nil disables the event stream
	Database Pinger                 // nil reports the database as unhealthy
}
