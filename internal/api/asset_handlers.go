package api

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/http/response"
	"github.com/colorbook/colorbook-server/internal/storage"
)

func (s *Server) registerAssetRoutes() {
	s.router.Get("/assets/{bucket}/*", s.handleGetAsset)
	s.router.Head("/assets/{bucket}/*", s.handleGetAsset)
}

// handleGetAsset serves a stored object. Keys carry the entity revision, so
// a key's bytes never change and responses are cached as immutable.
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")

	if !slices.Contains(s.config.Buckets, bucket) {
		response.NotFound(w, "asset not found", s.logger)
		return
	}

	data, err := s.objects.Get(r.Context(), bucket, key)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		response.NotFound(w, "asset not found", s.logger)
		return
	case errors.Is(err, storage.ErrInvalidKey):
		response.BadRequest(w, "invalid asset key", s.logger)
		return
	case err != nil:
		s.logger.Error("failed to read asset", "bucket", bucket, "key", key, "error", err)
		response.InternalError(w, "failed to read asset", s.logger)
		return
	}

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", CacheImmutable)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}
