package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/colorbook/colorbook-server/internal/assets"
	"github.com/colorbook/colorbook-server/internal/http/response"
	"github.com/colorbook/colorbook-server/internal/media/transcode"
	"github.com/colorbook/colorbook-server/internal/search"
	"github.com/colorbook/colorbook-server/internal/service"
	"github.com/colorbook/colorbook-server/internal/sse"
	"github.com/colorbook/colorbook-server/internal/storage"
	"github.com/colorbook/colorbook-server/internal/store/sqlite"
	"github.com/colorbook/colorbook-server/internal/validation"
)

const (
	testCategoryBucket = "categories"
	testPageBucket     = "pages"
)

// testServer wraps the API server with a humatest client for JSON routes.
type testServer struct {
	*Server
	api     humatest.TestAPI
	cleaner *assets.Cleaner
}

// setupTestServer builds the full stack on temp directories: sqlite, a
// filesystem object store, and a bleve index.
func setupTestServer(t *testing.T) *testServer {
	return setupTestServerWithConfig(t, Config{})
}

func setupTestServerWithConfig(t *testing.T, cfg Config) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	db, err := sqlite.Open(filepath.Join(dir, "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	objects, err := storage.NewFSStore(filepath.Join(dir, "objects"))
	require.NoError(t, err)

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(dir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	cleaner := assets.NewCleaner(objects, time.Second, logger)
	t.Cleanup(func() { _ = cleaner.Shutdown() })
	coordinator := assets.NewCoordinator(objects, transcode.NewImageTranscoder(64, logger), cleaner,
		assets.Config{OperationTimeout: 5 * time.Second, CleanupTimeout: 5 * time.Second}, logger)

	events := sse.NewManager(logger)
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	go events.Start(eventsCtx)
	t.Cleanup(stopEvents)

	searchService := service.NewSearchService(index, db, logger)
	hooks := service.NewHooks(logger, searchService, events)
	v := validation.New()
	tags := service.NewTagService(db, logger)

	services := &Services{
		Category: service.NewCategoryService(db, coordinator,
			service.AssetPolicy{Bucket: testCategoryBucket, Quality: 80}, hooks, v, logger),
		Page: service.NewColoringPageService(db, tags, coordinator,
			service.AssetPolicy{Bucket: testPageBucket, Quality: 80}, hooks, v, logger),
		Tag:      tags,
		Search:   searchService,
		Events:   events,
		Database: db,
	}

	if cfg.Buckets == nil {
		cfg.Buckets = []string{testCategoryBucket, testPageBucket}
	}
	srv := NewServer(services, objects, cfg, logger)
	t.Cleanup(func() { _ = srv.Shutdown() })

	return &testServer{
		Server:  srv,
		api:     humatest.Wrap(t, srv.API()),
		cleaner: cleaner,
	}
}

// part is one multipart field; a non-nil file makes it an upload.
type part struct {
	name  string
	value string
	file  []byte
}

func field(name, value string) part { return part{name: name, value: value} }

func upload(name string, data []byte) part { return part{name: name, file: data} }

// send performs a multipart request through the full router.
func (ts *testServer) send(t *testing.T, method, path string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.file != nil {
			fw, err := mw.CreateFormFile(p.name, p.name+".png")
			require.NoError(t, err)
			_, err = fw.Write(p.file)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, mw.WriteField(p.name, p.value))
	}
	require.NoError(t, mw.Close())

	return ts.do(t, method, path, mw.FormDataContentType(), &body)
}

// do sends a raw body through the full router.
func (ts *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

// get performs a plain request through the full router.
func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) service.WriteResult {
	t.Helper()
	var res service.WriteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

// decodeEnvelope unwraps an enveloped response, decoding data into out when given.
func decodeEnvelope(t *testing.T, body []byte, out any) response.Envelope {
	t.Helper()
	var raw struct {
		response.Envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &raw), string(body))
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out), string(body))
	}
	return raw.Envelope
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// createCategory creates a category over HTTP and returns its ID.
func (ts *testServer) createCategory(t *testing.T, name string, parts ...part) string {
	t.Helper()
	rec := ts.send(t, http.MethodPost, "/api/v1/categories", append([]part{field("name", name)}, parts...)...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	require.True(t, res.Success)
	require.NotEmpty(t, res.ID)
	return res.ID
}

// createPage creates a page over HTTP and returns its ID.
func (ts *testServer) createPage(t *testing.T, title string, parts ...part) string {
	t.Helper()
	all := append([]part{field("title", title), upload("image", pngBytes(t))}, parts...)
	rec := ts.send(t, http.MethodPost, "/api/v1/pages", all...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	require.True(t, res.Success)
	return res.ID
}
