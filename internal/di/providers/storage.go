package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/config"
	"github.com/colorbook/colorbook-server/internal/logger"
	"github.com/colorbook/colorbook-server/internal/media/transcode"
	"github.com/colorbook/colorbook-server/internal/storage"
)

// ObjectStoreHandle wraps the configured object store backend.
type ObjectStoreHandle struct {
	storage.ObjectStore
	shutdown func() error
}

// Shutdown implements do.Shutdownable.
func (h *ObjectStoreHandle) Shutdown() error {
	if h.shutdown == nil {
		return nil
	}
	return h.shutdown()
}

// ProvideObjectStore provides the blob store selected by STORAGE_BACKEND.
func ProvideObjectStore(i do.Injector) (*ObjectStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Storage.Backend {
	case config.BackendS3:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.OperationTimeout)
		defer cancel()

		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			AccessKeyID:  cfg.Storage.S3AccessKeyID,
			SecretKey:    cfg.Storage.S3SecretKey,
			UsePathStyle: cfg.Storage.S3UsePathStyle,
		}, log.Component("storage"))
		if err != nil {
			return nil, err
		}
		log.Info("Object storage initialized", "backend", "s3", "endpoint", cfg.Storage.S3Endpoint)
		return &ObjectStoreHandle{ObjectStore: s3Store}, nil

	case config.BackendBadger:
		path := filepath.Join(cfg.Data.BasePath, "blobs")
		badgerStore, err := storage.NewBadgerStore(path, log.Component("storage"))
		if err != nil {
			return nil, err
		}
		log.Info("Object storage initialized", "backend", "badger", "path", path)
		return &ObjectStoreHandle{ObjectStore: badgerStore, shutdown: badgerStore.Shutdown}, nil

	case config.BackendFS:
		path := filepath.Join(cfg.Data.BasePath, "objects")
		fsStore, err := storage.NewFSStore(path)
		if err != nil {
			return nil, err
		}
		log.Info("Object storage initialized", "backend", "fs", "path", path)
		return &ObjectStoreHandle{ObjectStore: fsStore}, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// ProvideTranscoder provides the derived image transcoder.
func ProvideTranscoder(i do.Injector) (transcode.Transcoder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return transcode.NewImageTranscoder(cfg.Transcode.MaxEdge, log.Component("transcode")), nil
}

// ProvideCleaner provides the background deleter for superseded blobs.
// Its Shutdown waits for in-flight deletions.
func ProvideCleaner(i do.Injector) (*assets.Cleaner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	objects := do.MustInvoke[*ObjectStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return assets.NewCleaner(objects.ObjectStore, cfg.Storage.CleanupTimeout, log.Component("cleaner")), nil
}

// ProvideCoordinator provides the asset coordinator shared by the write services.
func ProvideCoordinator(i do.Injector) (*assets.Coordinator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	objects := do.MustInvoke[*ObjectStoreHandle](i)
	transcoder := do.MustInvoke[transcode.Transcoder](i)
	cleaner := do.MustInvoke[*assets.Cleaner](i)
	log := do.MustInvoke[*logger.Logger](i)

	return assets.NewCoordinator(objects.ObjectStore, transcoder, cleaner, assets.Config{
		OperationTimeout: cfg.Storage.OperationTimeout,
		CleanupTimeout:   cfg.Storage.CleanupTimeout,
	}, log.Component("assets")), nil
}
