// Package assets turns uploaded files into stored blob pairs (original plus
// derived encoding) and cleans them up again when a write is abandoned.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/media/transcode"
	"github.com/colorbook/colorbook-server/internal/storage"
)

// allowedMIMETypes are the raster formats the transcoder can decode.
var allowedMIMETypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"image/bmp",
	"image/tiff",
}

// File is one user-supplied upload.
type File struct {
	Name string
	Data []byte
}

// UploadOptions control a single upload.
type UploadOptions struct {
	Bucket string
	// Upsert overwrites existing objects at the resolved keys.
	Upsert bool
	// DerivedOnly skips storing the original bytes.
	DerivedOnly bool
	// Quality of the derived encoding, 1-100. Zero uses the transcoder default.
	Quality int
	// Prefix namespaces the resolved keys, e.g. "<entity id>/<revision>".
	Prefix string
}

// UploadResult holds what was stored. After a failed upload it still names
// any blob that was written, so the caller can compensate.
type UploadResult struct {
	Original *domain.AssetRef
	Derived  *domain.AssetRef
	// BlurHash of the derived image; empty in derived-only mode.
	BlurHash string
}

// Refs returns the stored references.
func (r *UploadResult) Refs() []*domain.AssetRef {
	if r == nil {
		return nil
	}
	return compact([]*domain.AssetRef{r.Original, r.Derived})
}

// Config holds coordinator settings.
type Config struct {
	// OperationTimeout bounds each object store and transcoder call.
	OperationTimeout time.Duration
	// CleanupTimeout bounds synchronous compensation, including the
	// rollback of a whole entity write.
	CleanupTimeout time.Duration
}

// Coordinator uploads, replaces, and deletes asset pairs.
type Coordinator struct {
	store      storage.ObjectStore
	transcoder transcode.Transcoder
	cleaner    *Cleaner
	config     Config
	logger     *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	store storage.ObjectStore,
	transcoder transcode.Transcoder,
	cleaner *Cleaner,
	config Config,
	logger *slog.Logger,
) *Coordinator {
	if config.CleanupTimeout <= 0 {
		config.CleanupTimeout = 30 * time.Second
	}
	return &Coordinator{
		store:      store,
		transcoder: transcoder,
		cleaner:    cleaner,
		config:     config,
		logger:     logger,
	}
}

// UploadNew validates file, stores the original (unless DerivedOnly),
// transcodes it, and stores the derived copy.
//
// The returned result is never nil. On failure it names any blob already
// written: a transcode or derived upload failure leaves Original set, and
// cleaning it up is the caller's job.
func (c *Coordinator) UploadNew(ctx context.Context, file File, opts UploadOptions) (*UploadResult, error) {
	result := &UploadResult{}

	contentType, err := c.validate(file)
	if err != nil {
		return result, err
	}

	derivedKey, err := ResolveKey(file.Name, true)
	if err != nil {
		return result, err
	}
	derivedKey = JoinKey(opts.Prefix, derivedKey)

	if !opts.DerivedOnly {
		originalKey, err := ResolveKey(file.Name, false)
		if err != nil {
			return result, err
		}
		originalKey = JoinKey(opts.Prefix, originalKey)

		if err := c.put(ctx, opts.Bucket, originalKey, file.Data, contentType, opts.Upsert); err != nil {
			return result, errors.Wrapf(err, errors.CodeUpload, "could not upload %s", file.Name)
		}
		result.Original = &domain.AssetRef{Bucket: opts.Bucket, Key: originalKey}
	}

	derived, err := c.transcode(ctx, file.Data, opts.Quality)
	if err != nil {
		return result, errors.Wrapf(err, errors.CodeTranscode, "could not convert %s", file.Name)
	}

	if err := c.put(ctx, opts.Bucket, derivedKey, derived.Data, derived.ContentType, opts.Upsert); err != nil {
		return result, errors.Wrapf(err, errors.CodeUpload, "could not upload converted %s", file.Name)
	}
	result.Derived = &domain.AssetRef{Bucket: opts.Bucket, Key: derivedKey}

	if !opts.DerivedOnly {
		hash, err := transcode.ComputeBlurHash(derived.Data)
		if err != nil {
			c.logger.Warn("blurhash failed", "asset", result.Derived.String(), "error", err)
		}
		result.BlurHash = hash
	}

	c.logger.Debug("uploaded asset",
		"bucket", opts.Bucket,
		"original", keyOf(result.Original),
		"derived", derivedKey,
		"size", len(file.Data),
		"derived_size", len(derived.Data),
	)
	return result, nil
}

// Replacement is an uploaded asset pair that supersedes an older pair.
// Exactly one of Confirm or Abandon must follow.
type Replacement struct {
	*UploadResult
	Old []*domain.AssetRef

	coordinator *Coordinator
}

// PathsChanged reports whether any new key differs from the old keys.
func (r *Replacement) PathsChanged() bool {
	return len(r.superseded()) > 0 || len(r.fresh()) > 0
}

// Confirm schedules background deletion of old blobs that the new pair does
// not reuse. Call it only after the row naming the new keys is committed.
func (r *Replacement) Confirm() {
	if stale := r.superseded(); len(stale) > 0 {
		r.coordinator.cleaner.Schedule("superseded", stale...)
	}
}

// Abandon deletes the newly written blobs, sparing any key the old pair still
// uses.
func (r *Replacement) Abandon(ctx context.Context) error {
	return r.coordinator.Compensate(ctx, r.fresh()...)
}

func (r *Replacement) superseded() []*domain.AssetRef {
	return difference(r.Old, r.Refs())
}

func (r *Replacement) fresh() []*domain.AssetRef {
	return difference(r.Refs(), r.Old)
}

// Replace uploads file as the successor of the old pair. On upload failure
// the partial blobs are compensated before returning, so the caller only
// handles the error.
func (c *Coordinator) Replace(ctx context.Context, file File, oldOriginal, oldDerived *domain.AssetRef, opts UploadOptions) (*Replacement, error) {
	rep := &Replacement{
		Old:         compact([]*domain.AssetRef{oldOriginal, oldDerived}),
		coordinator: c,
	}

	result, err := c.UploadNew(ctx, file, opts)
	rep.UploadResult = result
	if err != nil {
		if cerr := rep.Abandon(ctx); cerr != nil {
			c.logger.Error("rollback after failed replace",
				"code", errors.CodeRollback,
				"error", cerr,
			)
		}
		return nil, err
	}
	return rep, nil
}

// CleanupTimeout is the bound callers use for their own rollbacks.
func (c *Coordinator) CleanupTimeout() time.Duration {
	return c.config.CleanupTimeout
}

// DeletePair deletes both blobs concurrently. Missing objects count as
// deleted. Other failures are logged and not returned.
func (c *Coordinator) DeletePair(ctx context.Context, original, derived *domain.AssetRef) {
	if err := c.deleteAll(ctx, original, derived); err != nil {
		c.logger.Warn("asset delete failed", "error", err)
	}
}

// Compensate synchronously deletes blobs written by an abandoned write.
// It runs even if ctx is already cancelled and returns a ROLLBACK error
// joining every failed delete.
func (c *Coordinator) Compensate(ctx context.Context, refs ...*domain.AssetRef) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.CleanupTimeout)
	defer cancel()

	if err := c.deleteAll(ctx, refs...); err != nil {
		return errors.Wrap(err, errors.CodeRollback, "could not remove uploaded assets")
	}
	return nil
}

// deleteAll waits for every delete, never stopping at the first failure.
func (c *Coordinator) deleteAll(ctx context.Context, refs ...*domain.AssetRef) error {
	refs = compact(refs)
	errs := make([]error, len(refs))

	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			opCtx, cancel := c.opContext(ctx)
			defer cancel()

			err := c.store.Delete(opCtx, ref.Bucket, ref.Key)
			if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				errs[i] = fmt.Errorf("delete %s: %w", ref, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (c *Coordinator) validate(file File) (string, error) {
	if len(file.Data) == 0 {
		return "", errors.Validation("file is empty").WithDetails(map[string]string{"file_name": file.Name})
	}

	mt := mimetype.Detect(file.Data)
	if !mimetype.EqualsAny(mt.String(), allowedMIMETypes...) {
		return "", errors.InvalidFileType(fmt.Sprintf("%s is not a supported image (%s)", file.Name, mt.String())).
			WithDetails(map[string]any{"file_name": file.Name, "detected": mt.String(), "allowed": allowedMIMETypes})
	}
	return mt.String(), nil
}

func (c *Coordinator) put(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return c.store.Put(ctx, bucket, key, data, contentType, upsert)
}

func (c *Coordinator) transcode(ctx context.Context, data []byte, quality int) (*transcode.Result, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return c.transcoder.Transcode(ctx, data, quality)
}

func (c *Coordinator) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.OperationTimeout)
}

func keyOf(ref *domain.AssetRef) string {
	if ref == nil {
		return ""
	}
	return ref.Key
}

// difference returns refs in a that are not in b.
func difference(a, b []*domain.AssetRef) []*domain.AssetRef {
	var out []*domain.AssetRef
	for _, x := range a {
		found := false
		for _, y := range b {
			if x.Equal(y) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, x)
		}
	}
	return out
}
