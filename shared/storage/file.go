package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
)

const resultsFile = "analysis_results.json"

// FileStore keeps analysis results in memory and, when it has a file path,
// rewrites a JSON snapshot after every change.
type FileStore struct {
	filePath string
	results  map[string]*models.AnalysisResult
	last     time.Time
	mu       sync.RWMutex
	log      *logrus.Logger
}

// NewFileStore creates a store persisted under dataDir.
func NewFileStore(dataDir string, log *logrus.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperr.Storage("open", fmt.Errorf("failed to create data directory: %w", err))
	}

	store := &FileStore{
		filePath: filepath.Join(dataDir, resultsFile),
		results:  make(map[string]*models.AnalysisResult),
		log:      log,
	}

	if err := store.load(); err != nil {
		return nil, apperr.Storage("open", err)
	}

	log.WithFields(logrus.Fields{
		"path":    store.filePath,
		"records": len(store.results),
	}).Info("File result store ready")

	return store, nil
}

// NewMemoryStore creates a store that is never written to disk.
func NewMemoryStore(log *logrus.Logger) *FileStore {
	return &FileStore{
		results: make(map[string]*models.AnalysisResult),
		log:     log,
	}
}

func (fs *FileStore) Insert(ctx context.Context, result *models.AnalysisResult) (*models.AnalysisResult, error) {
	if result == nil || result.ID == "" {
		return nil, apperr.Storage("insert", fmt.Errorf("result must have an id"))
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.results[result.ID]; exists {
		return nil, apperr.Storage("insert", fmt.Errorf("result %s already exists", result.ID))
	}

	stored := result.Clone()
	stored.CreatedAt = fs.nextTimestamp()
	fs.results[stored.ID] = stored

	if err := fs.save(); err != nil {
		delete(fs.results, stored.ID)
		return nil, apperr.Storage("insert", err)
	}

	return stored.Clone(), nil
}

// nextTimestamp returns a creation time strictly after the previous one, so
// newest-first order matches insertion order even within one clock tick.
func (fs *FileStore) nextTimestamp() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(fs.last) {
		now = fs.last.Add(time.Microsecond)
	}
	fs.last = now
	return now
}

func (fs *FileStore) List(ctx context.Context) ([]*models.AnalysisResult, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	results := make([]*models.AnalysisResult, 0, len(fs.results))
	for _, r := range fs.results {
		results = append(results, r.Clone())
	}
	sortNewestFirst(results)
	return results, nil
}

func (fs *FileStore) Get(ctx context.Context, id string) (*models.AnalysisResult, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	r, ok := fs.results[id]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (fs *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	r, ok := fs.results[id]
	if !ok {
		return false, nil
	}
	delete(fs.results, id)

	if err := fs.save(); err != nil {
		fs.results[id] = r
		return false, apperr.Storage("delete", err)
	}
	return true, nil
}

func (fs *FileStore) Ping(ctx context.Context) error {
	if fs.filePath == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(fs.filePath)); err != nil {
		return apperr.Storage("ping", err)
	}
	return nil
}

func (fs *FileStore) Close() {}

// Count returns the number of stored results.
func (fs *FileStore) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.results)
}

func sortNewestFirst(results []*models.AnalysisResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}

// load reads the snapshot file. A missing file is an empty store.
func (fs *FileStore) load() error {
	file, err := os.Open(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	var results []*models.AnalysisResult
	if err := json.NewDecoder(file).Decode(&results); err != nil {
		return fmt.Errorf("failed to decode results file: %w", err)
	}

	for _, r := range results {
		if r == nil || r.ID == "" {
			continue
		}
		r.Normalize()
		fs.results[r.ID] = r
		if r.CreatedAt.After(fs.last) {
			fs.last = r.CreatedAt
		}
	}
	return nil
}

// save writes the snapshot to a temp file and renames it into place.
func (fs *FileStore) save() error {
	if fs.filePath == "" {
		return nil
	}

	results := make([]*models.AnalysisResult, 0, len(fs.results))
	for _, r := range fs.results {
		results = append(results, r)
	}
	sortNewestFirst(results)

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), resultsFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.filePath); err != nil {
		return fmt.Errorf("failed to replace results file: %w", err)
	}
	return nil
}
