package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/id"
)

// AssetPolicy configures how a service stores its images.
type AssetPolicy struct {
	Bucket  string
	Upsert  bool
	Quality int
}

func (p AssetPolicy) options(prefix string, derivedOnly bool) assets.UploadOptions {
	return assets.UploadOptions{
		Bucket:      p.Bucket,
		Upsert:      p.Upsert,
		DerivedOnly: derivedOnly,
		Quality:     p.Quality,
		Prefix:      prefix,
	}
}

// keyPrefix namespaces one write's blobs under the entity and a fresh
// revision, so a new upload never lands on a key the current row uses.
func keyPrefix(entityID string) (string, error) {
	rev, err := id.Revision()
	if err != nil {
		return "", err
	}
	return assets.JoinKey(entityID, rev), nil
}

// roleUpload is one image role of an entity, e.g. a category hero.
type roleUpload struct {
	role string
	file *assets.File
	old  *domain.AssetRef

	replacement *assets.Replacement
	err         error
}

// replaceRoles uploads every role that has a file concurrently and waits for
// all of them. It returns the first error in role order; successful
// replacements are still populated so the caller can abandon them.
func replaceRoles(ctx context.Context, coord *assets.Coordinator, roles []*roleUpload, opts assets.UploadOptions) error {
	var g errgroup.Group
	for _, r := range roles {
		if r.file == nil {
			continue
		}
		g.Go(func() error {
			o := opts
			o.Prefix = assets.JoinKey(opts.Prefix, r.role)
			r.replacement, r.err = coord.Replace(ctx, *r.file, nil, r.old, o)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range roles {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}
