package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/colorbook/colorbook-server/internal/api"
	"github.com/colorbook/colorbook-server/internal/config"
	"github.com/colorbook/colorbook-server/internal/logger"
	"github.com/colorbook/colorbook-server/internal/service"
)

// ProvideAPIServer provides the HTTP handler with all routes configured.
// The container calls its Shutdown after the HTTP server has drained.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	objects := do.MustInvoke[*ObjectStoreHandle](i)
	events := do.MustInvoke[*EventManagerHandle](i)

	services := &api.Services{
		Category: do.MustInvoke[*service.CategoryService](i),
		Page:     do.MustInvoke[*service.ColoringPageService](i),
		Tag:      do.MustInvoke[*service.TagService](i),
		Search:   do.MustInvoke[*service.SearchService](i),
		Events:   events.Manager,
		Database: storeHandle.Store,
	}

	return api.NewServer(services, objects.ObjectStore, api.Config{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		WritesPerSecond: cfg.RateLimit.WritesPerSecond,
		WriteBurst:      cfg.RateLimit.Burst,
		Buckets:         []string{cfg.Storage.CategoryBucket, cfg.Storage.PageBucket},
	}, log.Component("api")), nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	log *logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	h.log.Info("Shutting down HTTP server")
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*api.Server](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, log: log}, nil
}
