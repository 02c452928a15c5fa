// Package storage persists entities as one JSON file per record inside a
// collection directory, with an in-memory read cache owned by the engine.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// DataDirName is the directory under the base path holding all collections.
const DataDirName = ".critical-claude"

// ErrInvalidID is returned when an entity ID cannot be used as a file name.
var ErrInvalidID = errors.New("invalid entity id")

// Engine defines durable per-entity JSON persistence.
type Engine interface {
	// Save writes v to <collection>/<id>.json atomically and updates the cache.
	Save(collection, id string, v any) error
	// FindByID decodes the entity into out. found is false when the file is absent.
	FindByID(collection, id string, out any) (found bool, err error)
	// FindAll returns the raw JSON of every readable entity, ordered by ID.
	FindAll(collection string) ([]json.RawMessage, error)
	// Delete removes the entity, reporting false if it was already absent.
	Delete(collection, id string) (bool, error)
	// Invalidate drops the cache for a collection so the next read hits disk.
	Invalidate(collection string)
	// LastSkipped lists the files FindAll skipped as unreadable on its last scan.
	LastSkipped(collection string) []string
	// Root returns the data directory.
	Root() string
}

// collectionCache mirrors one collection directory. complete is set once every
// file has been read, after which FindAll is served from memory.
type collectionCache struct {
	entries  map[string][]byte
	complete bool
	skipped  []string
}

type fileStorage struct {
	root   string
	logger *log.Logger

	mu    sync.RWMutex
	cache map[string]*collectionCache
}

// NewFileStorage creates an Engine rooted at root (typically
// <base>/.critical-claude). logger may be nil.
func NewFileStorage(root string, logger *log.Logger) Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &fileStorage{
		root:   root,
		logger: logger,
		cache:  make(map[string]*collectionCache),
	}
}

// DataDir returns the data directory for a base path.
func DataDir(basePath string) string {
	return filepath.Join(basePath, DataDirName)
}

func (s *fileStorage) Root() string {
	return s.root
}

func (s *fileStorage) collectionDir(collection string) string {
	return filepath.Join(s.root, collection)
}

func (s *fileStorage) entityPath(collection, id string) string {
	return filepath.Join(s.collectionDir(collection), id+".json")
}

// validateName rejects names that would escape the collection directory.
func validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidID, kind)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %s %q contains a path separator or '..'", ErrInvalidID, kind, name)
	}
	return nil
}

// cacheFor returns the cache for a collection, creating it. Caller holds s.mu.
func (s *fileStorage) cacheFor(collection string) *collectionCache {
	c, ok := s.cache[collection]
	if !ok {
		c = &collectionCache{entries: make(map[string][]byte)}
		s.cache[collection] = c
	}
	return c
}

func (s *fileStorage) Save(collection, id string, v any) error {
	if err := validateName("collection", collection); err != nil {
		return err
	}
	if err := validateName("id", id); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("saving %s/%s: marshaling JSON: %w", collection, id, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.collectionDir(collection), 0o755); err != nil {
		return fmt.Errorf("saving %s/%s: creating directory: %w", collection, id, err)
	}

	path := s.entityPath(collection, id)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("saving %s/%s: writing temp file: %w", collection, id, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving %s/%s: renaming: %w", collection, id, err)
	}

	s.cacheFor(collection).entries[id] = data
	s.logger.Debug("entity saved", "collection", collection, "id", id)
	return nil
}

func (s *fileStorage) FindByID(collection, id string, out any) (bool, error) {
	if err := validateName("collection", collection); err != nil {
		return false, err
	}
	if err := validateName("id", id); err != nil {
		return false, err
	}

	s.mu.RLock()
	var cached []byte
	if c, ok := s.cache[collection]; ok {
		cached = c.entries[id]
	}
	s.mu.RUnlock()

	if cached != nil {
		if err := json.Unmarshal(cached, out); err != nil {
			return false, fmt.Errorf("reading %s/%s: parsing cached JSON: %w", collection, id, err)
		}
		return true, nil
	}

	data, err := os.ReadFile(s.entityPath(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("reading %s/%s: parsing JSON: %w", collection, id, err)
	}

	s.mu.Lock()
	s.cacheFor(collection).entries[id] = data
	s.mu.Unlock()

	return true, nil
}

func (s *fileStorage) FindAll(collection string) ([]json.RawMessage, error) {
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cacheFor(collection)
	if !c.complete {
		if err := s.scan(collection, c); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		raw := make(json.RawMessage, len(c.entries[id]))
		copy(raw, c.entries[id])
		result = append(result, raw)
	}
	return result, nil
}

// scan reads every entity file of a collection into c. Unparseable files are
// skipped and remembered in c.skipped. Caller holds s.mu.
func (s *fileStorage) scan(collection string, c *collectionCache) error {
	dir := s.collectionDir(collection)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.complete = true
			c.skipped = nil
			return nil
		}
		return fmt.Errorf("listing %s: %w", collection, err)
	}

	entries := make(map[string][]byte, len(dirEntries))
	var skipped []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable entity", "collection", collection, "file", name, "err", err)
			skipped = append(skipped, name)
			continue
		}
		if !json.Valid(data) {
			s.logger.Warn("skipping corrupt entity", "collection", collection, "file", name)
			skipped = append(skipped, name)
			continue
		}
		entries[id] = data
	}

	c.entries = entries
	c.skipped = skipped
	c.complete = true
	return nil
}

func (s *fileStorage) Delete(collection, id string) (bool, error) {
	if err := validateName("collection", collection); err != nil {
		return false, err
	}
	if err := validateName("id", id); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.entityPath(collection, id))
	if c, ok := s.cache[collection]; ok {
		delete(c.entries, id)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	s.logger.Debug("entity deleted", "collection", collection, "id", id)
	return true, nil
}

func (s *fileStorage) Invalidate(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, collection)
}

func (s *fileStorage) LastSkipped(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.cache[collection]; ok {
		return append([]string(nil), c.skipped...)
	}
	return nil
}
