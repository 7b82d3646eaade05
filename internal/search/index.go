package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// SearchIndex is the Bleve index of catalog documents.
//
// Methods are safe for concurrent use. ReplaceAll swaps the live index under
// the write lock; everything else shares the read lock.
type SearchIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory holding the index
	Logger   *slog.Logger // Discards when nil
}

// mappingVersion changes whenever buildIndexMapping does. An index stamped
// with another version is dropped on open.
const mappingVersion = "catalog-1"

// mappingVersionKey is where the version lives in the index's internal store.
var mappingVersionKey = []byte("_mapping_version")

// reindexBatchSize bounds the documents held in one Bleve batch.
const reindexBatchSize = 500

// NewSearchIndex opens the catalog index under opts.DataPath, creating it
// when it is missing, unreadable, or stamped with an older mapping.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(opts.DataPath, 0755); err != nil {
		return nil, fmt.Errorf("create search directory: %w", err)
	}

	path := filepath.Join(opts.DataPath, "catalog.bleve")
	index, err := openCurrent(path, logger)
	if err != nil {
		return nil, err
	}
	return &SearchIndex{index: index, path: path, logger: logger}, nil
}

// openCurrent opens path if it holds an index with the current mapping and
// otherwise replaces it with an empty one.
func openCurrent(path string, logger *slog.Logger) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err == nil {
			version, _ := index.GetInternal(mappingVersionKey)
			if string(version) == mappingVersion {
				logger.Info("opened search index", "path", path)
				return index, nil
			}
			logger.Info("search mapping changed, recreating index",
				"old_version", string(version),
				"new_version", mappingVersion,
			)
			_ = index.Close()
		} else {
			logger.Warn("search index unreadable, recreating", "path", path, "error", err)
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}
	return createEmpty(path)
}

func createEmpty(path string) (bleve.Index, error) {
	index, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := index.SetInternal(mappingVersionKey, []byte(mappingVersion)); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("stamp index version: %w", err)
	}
	return index, nil
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Put indexes or overwrites one document.
func (s *SearchIndex) Put(doc *SearchDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// Remove drops one document. Unknown IDs are not an error.
func (s *SearchIndex) Remove(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// ReplaceAll builds a fresh index holding exactly docs beside the live one,
// then swaps it in. Searches keep hitting the old index until the swap, and
// a failed build leaves the old index untouched.
func (s *SearchIndex) ReplaceAll(docs []*SearchDocument) error {
	staging := s.path + ".next"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging index: %w", err)
	}

	next, err := createEmpty(staging)
	if err != nil {
		return err
	}
	if err := fill(next, docs); err != nil {
		_ = next.Close()
		_ = os.RemoveAll(staging)
		return err
	}
	if err := next.Close(); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("close staging index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close live index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return s.reopen(fmt.Errorf("remove live index: %w", err))
	}
	if err := os.Rename(staging, s.path); err != nil {
		return s.reopen(fmt.Errorf("swap index: %w", err))
	}
	return s.reopen(nil)
}

// reopen reattaches s.index to s.path after a swap attempt. Must hold mu.
func (s *SearchIndex) reopen(cause error) error {
	index, err := openCurrent(s.path, s.logger)
	if err != nil {
		s.logger.Error("could not reopen search index", "path", s.path, "error", err)
		if cause == nil {
			cause = err
		}
		return cause
	}
	s.index = index
	return cause
}

func fill(index bleve.Index, docs []*SearchDocument) error {
	for start := 0; start < len(docs); start += reindexBatchSize {
		end := min(start+reindexBatchSize, len(docs))
		batch := index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("index %s: %w", doc.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit documents %d-%d: %w", start, end, err)
		}
	}
	return nil
}
