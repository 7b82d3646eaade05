package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]ObjectStore {
	t.Helper()

	fsStore, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	badgerStore, err := NewBadgerStore("", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { badgerStore.Shutdown() })

	return map[string]ObjectStore{
		"fs":     fsStore,
		"badger": badgerStore,
	}
}

func TestObjectStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("put and get", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "pages", "p1/r1/cat.png", []byte("png"), "image/png", false))

				data, err := s.Get(ctx, "pages", "p1/r1/cat.png")
				require.NoError(t, err)
				assert.Equal(t, []byte("png"), data)

				exists, err := s.Exists(ctx, "pages", "p1/r1/cat.png")
				require.NoError(t, err)
				assert.True(t, exists)
			})

			t.Run("no upsert refuses existing key", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "pages", "p2/r1/dog.png", []byte("v1"), "", false))

				err := s.Put(ctx, "pages", "p2/r1/dog.png", []byte("v2"), "", false)
				assert.ErrorIs(t, err, ErrObjectExists)

				data, err := s.Get(ctx, "pages", "p2/r1/dog.png")
				require.NoError(t, err)
				assert.Equal(t, []byte("v1"), data)
			})

			t.Run("upsert overwrites", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "pages", "p3/r1/owl.png", []byte("v1"), "", true))
				require.NoError(t, s.Put(ctx, "pages", "p3/r1/owl.png", []byte("v2"), "", true))

				data, err := s.Get(ctx, "pages", "p3/r1/owl.png")
				require.NoError(t, err)
				assert.Equal(t, []byte("v2"), data)
			})

			t.Run("buckets are isolated", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "categories", "c1/r1/a.opt.jpg", []byte("x"), "", false))

				_, err := s.Get(ctx, "pages", "c1/r1/a.opt.jpg")
				assert.ErrorIs(t, err, ErrObjectNotFound)
			})

			t.Run("delete then missing", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "pages", "p4/r1/fox.png", []byte("x"), "", false))
				require.NoError(t, s.Delete(ctx, "pages", "p4/r1/fox.png"))

				exists, err := s.Exists(ctx, "pages", "p4/r1/fox.png")
				require.NoError(t, err)
				assert.False(t, exists)

				assert.ErrorIs(t, s.Delete(ctx, "pages", "p4/r1/fox.png"), ErrObjectNotFound)

				_, err = s.Get(ctx, "pages", "p4/r1/fox.png")
				assert.ErrorIs(t, err, ErrObjectNotFound)
			})

			t.Run("rejects escaping keys", func(t *testing.T) {
				for _, key := range []string{"", "/abs.png", "../up.png", "a/../../b.png", `a\b.png`} {
					err := s.Put(ctx, "pages", key, []byte("x"), "", true)
					assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
				}
				assert.ErrorIs(t, s.Put(ctx, "", "k.png", []byte("x"), "", true), ErrInvalidKey)
				assert.ErrorIs(t, s.Put(ctx, "a/b", "k.png", []byte("x"), "", true), ErrInvalidKey)
			})

			t.Run("cancelled context", func(t *testing.T) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				assert.Error(t, s.Put(cctx, "pages", "p5/r1/x.png", []byte("x"), "", true))
			})
		})
	}
}

func TestObjectStore_ConcurrentNoUpsert(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				winners  int
				conflict int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.Put(ctx, "pages", "race/r1/same.png", []byte("x"), "", false)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						winners++
					} else {
						assert.ErrorIs(t, err, ErrObjectExists)
						conflict++
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, winners)
			assert.Equal(t, 7, conflict)
		})
	}
}

func TestNewFSStore(t *testing.T) {
	t.Run("returns error for empty path", func(t *testing.T) {
		s, err := NewFSStore("")
		assert.Error(t, err)
		assert.Nil(t, s)
		assert.Contains(t, err.Error(), "base path cannot be empty")
	})

	t.Run("creates nested directories if needed", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "nested", "path")

		s, err := NewFSStore(nested)
		require.NoError(t, err)
		require.NotNil(t, s)

		info, err := os.Stat(nested)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestFSStore_DeletePrunesEmptyDirs(t *testing.T) {
	base := t.TempDir()
	s, err := NewFSStore(base)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "pages", "p1/r1/a.png", []byte("a"), "", false))
	require.NoError(t, s.Put(ctx, "pages", "p1/r2/b.png", []byte("b"), "", false))
	require.NoError(t, s.Delete(ctx, "pages", "p1/r1/a.png"))

	_, err = os.Stat(filepath.Join(base, "pages", "p1", "r1"))
	assert.True(t, os.IsNotExist(err), "empty revision dir should be removed")

	_, err = os.Stat(filepath.Join(base, "pages", "p1", "r2", "b.png"))
	assert.NoError(t, err, "sibling object must survive")

	_, err = os.Stat(filepath.Join(base, "pages"))
	assert.NoError(t, err, "bucket dir must survive")
}

func TestFSStore_Path(t *testing.T) {
	base := t.TempDir()
	s, err := NewFSStore(base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "pages", "a", "b.png"), s.Path("pages", "a/b.png"))
}
