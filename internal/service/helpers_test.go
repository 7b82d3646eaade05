package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/domain"
	"github.com/colorbook/colorbook-server/internal/media/transcode"
	"github.com/colorbook/colorbook-server/internal/storage"
	"github.com/colorbook/colorbook-server/internal/store"
	"github.com/colorbook/colorbook-server/internal/store/sqlite"
	"github.com/colorbook/colorbook-server/internal/validation"
)

const (
	testCategoryBucket = "categories"
	testPageBucket     = "pages"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// objectStore is an in-memory ObjectStore. Puts and deletes fail for keys
// containing a registered fragment.
type objectStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    map[string]error
	failDelete map[string]error
}

func newObjectStore() *objectStore {
	return &objectStore{
		objects:    map[string][]byte{},
		failPut:    map[string]error{},
		failDelete: map[string]error{},
	}
}

func (m *objectStore) injected(faults map[string]error, key string) error {
	for fragment, err := range faults {
		if strings.Contains(key, fragment) {
			return err
		}
	}
	return nil
}

func (m *objectStore) Put(_ context.Context, bucket, key string, data []byte, _ string, upsert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(m.failPut, key); err != nil {
		return err
	}
	k := bucket + "/" + key
	if _, ok := m.objects[k]; ok && !upsert {
		return storage.ErrObjectExists
	}
	m.objects[k] = append([]byte(nil), data...)
	return nil
}

func (m *objectStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (m *objectStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(m.failDelete, key); err != nil {
		return err
	}
	k := bucket + "/" + key
	if _, ok := m.objects[k]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, k)
	return nil
}

func (m *objectStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func (m *objectStore) failPutOn(fragment string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut[fragment] = err
}

func (m *objectStore) failDeleteOn(fragment string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDelete[fragment] = err
}

func (m *objectStore) has(ref *domain.AssetRef) bool {
	if ref == nil {
		return false
	}
	ok, _ := m.Exists(context.Background(), ref.Bucket, ref.Key)
	return ok
}

func (m *objectStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// faultyStore wraps the real store and fails chosen calls.
type faultyStore struct {
	store.Store

	mu                  sync.Mutex
	createCategoryErr   error
	updateCategoryErr   error
	createPageErr       error
	updatePageErr       error
	updatePagePasses    int // UpdatePage calls let through before updatePageErr applies
	deletePageErr       error
	addPageTagsErr      error
	replacePageLinksErr error
	panicOnAddCategory  bool
}

func (f *faultyStore) fault(errp *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *errp
}

func (f *faultyStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	if err := f.fault(&f.createCategoryErr); err != nil {
		return err
	}
	return f.Store.CreateCategory(ctx, c)
}

func (f *faultyStore) UpdateCategory(ctx context.Context, c *domain.Category, expectedVersion int) error {
	if err := f.fault(&f.updateCategoryErr); err != nil {
		return err
	}
	return f.Store.UpdateCategory(ctx, c, expectedVersion)
}

func (f *faultyStore) CreatePage(ctx context.Context, p *domain.ColoringPage) error {
	if err := f.fault(&f.createPageErr); err != nil {
		return err
	}
	return f.Store.CreatePage(ctx, p)
}

func (f *faultyStore) UpdatePage(ctx context.Context, p *domain.ColoringPage, expectedVersion int) error {
	f.mu.Lock()
	err := f.updatePageErr
	if err != nil && f.updatePagePasses > 0 {
		f.updatePagePasses--
		err = nil
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.UpdatePage(ctx, p, expectedVersion)
}

func (f *faultyStore) DeletePage(ctx context.Context, id string) error {
	if err := f.fault(&f.deletePageErr); err != nil {
		return err
	}
	return f.Store.DeletePage(ctx, id)
}

func (f *faultyStore) AddPageCategories(ctx context.Context, pageID string, categoryIDs []string) error {
	f.mu.Lock()
	panicking := f.panicOnAddCategory
	f.mu.Unlock()
	if panicking {
		panic("link writer crashed")
	}
	return f.Store.AddPageCategories(ctx, pageID, categoryIDs)
}

func (f *faultyStore) AddPageTags(ctx context.Context, pageID string, tagIDs []string) error {
	if err := f.fault(&f.addPageTagsErr); err != nil {
		return err
	}
	return f.Store.AddPageTags(ctx, pageID, tagIDs)
}

func (f *faultyStore) ReplacePageLinks(ctx context.Context, pageID string, categoryIDs, tagIDs []string) error {
	if err := f.fault(&f.replacePageLinksErr); err != nil {
		return err
	}
	return f.Store.ReplacePageLinks(ctx, pageID, categoryIDs, tagIDs)
}

func (f *faultyStore) set(fn func(f *faultyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// switchTranscoder delegates to the real transcoder until failing is set.
type switchTranscoder struct {
	inner   transcode.Transcoder
	failing atomic.Bool
}

func (s *switchTranscoder) Transcode(ctx context.Context, data []byte, quality int) (*transcode.Result, error) {
	if s.failing.Load() {
		return nil, fmt.Errorf("encoder exploded")
	}
	return s.inner.Transcode(ctx, data, quality)
}

// recordingHook captures catalog notifications.
type recordingHook struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingHook) record(event, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+id)
	return nil
}

func (r *recordingHook) CategoryChanged(_ context.Context, c *domain.Category) error {
	return r.record("category_changed", c.ID)
}

func (r *recordingHook) CategoryDeleted(_ context.Context, id string) error {
	return r.record("category_deleted", id)
}

func (r *recordingHook) PageChanged(_ context.Context, p *domain.ColoringPage) error {
	return r.record("page_changed", p.ID)
}

func (r *recordingHook) PageDeleted(_ context.Context, id string) error {
	return r.record("page_deleted", id)
}

func (r *recordingHook) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	db          *sqlite.Store
	store       *faultyStore
	objects     *objectStore
	transcoder  *switchTranscoder
	cleaner     *assets.Cleaner
	hook        *recordingHook
	hooks       *Hooks
	coordinator *assets.Coordinator
	tags        *TagService
	categories  *CategoryService
	pages       *ColoringPageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := discardLogger()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:         db,
		store:      &faultyStore{Store: db},
		objects:    newObjectStore(),
		transcoder: &switchTranscoder{inner: transcode.NewImageTranscoder(64, logger)},
		hook:       &recordingHook{},
	}
	h.cleaner = assets.NewCleaner(h.objects, time.Second, logger)
	t.Cleanup(func() { _ = h.cleaner.Shutdown() })
	h.coordinator = assets.NewCoordinator(h.objects, h.transcoder, h.cleaner,
		assets.Config{OperationTimeout: 5 * time.Second, CleanupTimeout: 5 * time.Second}, logger)
	h.hooks = NewHooks(logger, h.hook)

	v := validation.New()
	h.tags = NewTagService(h.store, logger)
	h.categories = NewCategoryService(h.store, h.coordinator,
		AssetPolicy{Bucket: testCategoryBucket, Quality: 80}, h.hooks, v, logger)
	h.pages = NewColoringPageService(h.store, h.tags, h.coordinator,
		AssetPolicy{Bucket: testPageBucket, Quality: 80}, h.hooks, v, logger)
	return h
}

// referencedKeys returns bucket/key of every blob a row points at.
func (h *harness) referencedKeys(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	var refs []*domain.AssetRef
	categories, err := h.db.ListCategories(ctx)
	require.NoError(t, err)
	for _, c := range categories {
		refs = append(refs, c.Assets()...)
	}
	pages, err := h.db.ListPages(ctx, "")
	require.NoError(t, err)
	for _, p := range pages {
		refs = append(refs, p.Assets()...)
	}

	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, r.String())
	}
	sort.Strings(keys)
	return keys
}

// requireConsistent asserts every row reference resolves to a blob and no
// blob is unreferenced, once background cleanup has drained.
func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	h.cleaner.Wait()
	require.Equal(t, h.referencedKeys(t), h.objects.keys())
}

func pngFile(t *testing.T, name string) *assets.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &assets.File{Name: name, Data: buf.Bytes()}
}

func (h *harness) createCategory(t *testing.T, name string) *domain.Category {
	t.Helper()
	c, err := h.categories.Create(context.Background(), CategoryInput{
		Name:      name,
		Thumbnail: pngFile(t, name+".png"),
	})
	require.NoError(t, err)
	return c
}
