package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colorbook/colorbook-server/internal/media/transcode"
	"github.com/colorbook/colorbook-server/internal/storage"
)

// memStore is an in-memory ObjectStore with per-operation fault injection.
type memStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failPut     map[string]error // keyed by object key
	failDelete  map[string]error
	deleteCalls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		objects:     map[string][]byte{},
		failPut:     map[string]error{},
		failDelete:  map[string]error{},
		deleteCalls: map[string]int{},
	}
}

func (m *memStore) Put(ctx context.Context, bucket, key string, data []byte, _ string, upsert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.failPut[key]; ok {
		return err
	}
	k := bucket + "/" + key
	if _, exists := m.objects[k]; exists && !upsert {
		return storage.ErrObjectExists
	}
	m.objects[k] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (m *memStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls[key]++
	if err, ok := m.failDelete[key]; ok {
		return err
	}
	k := bucket + "/" + key
	if _, ok := m.objects[k]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, k)
	return nil
}

func (m *memStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func (m *memStore) has(bucket, key string) bool {
	ok, _ := m.Exists(context.Background(), bucket, key)
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// failingTranscoder always fails.
type failingTranscoder struct{}

func (failingTranscoder) Transcode(context.Context, []byte, int) (*transcode.Result, error) {
	return nil, fmt.Errorf("encoder exploded")
}

// slowTranscoder blocks until its context ends.
type slowTranscoder struct{}

func (slowTranscoder) Transcode(ctx context.Context, _ []byte, _ int) (*transcode.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestCoordinator(store storage.ObjectStore, tr transcode.Transcoder) (*Coordinator, *Cleaner) {
	if tr == nil {
		tr = transcode.NewImageTranscoder(0, discardLogger())
	}
	cleaner := NewCleaner(store, time.Second, discardLogger())
	return NewCoordinator(store, tr, cleaner, Config{OperationTimeout: time.Second, CleanupTimeout: time.Second}, discardLogger()), cleaner
}
