package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/colorbook/colorbook-server/internal/logger"
	"github.com/colorbook/colorbook-server/internal/sse"
)

// EventManagerHandle wraps the SSE manager with its context for lifecycle management.
type EventManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideEventManager provides the catalog change stream.
func ProvideEventManager(i do.Injector) (*EventManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &EventManagerHandle{Manager: manager, cancel: cancel}, nil
}
