package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	hidden map[string][]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hidden: map[string][]string{}}
}

// Load implements VisibilityStore.
func (s *MemoryStore) Load(_ context.Context, tableID string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hidden, ok := s.hidden[tableID]
	return append([]string(nil), hidden...), ok, nil
}

// Save implements VisibilityStore.
func (s *MemoryStore) Save(_ context.Context, tableID string, hidden []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[tableID] = append([]string{}, hidden...)
	return nil
}

// FileStore keeps every table's preference in one JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore stores preferences at path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements VisibilityStore.
func (s *FileStore) Load(_ context.Context, tableID string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	hidden, ok := doc[tableID]
	return hidden, ok, nil
}

// Save implements VisibilityStore. Writes go through a temp file so readers
// never see a partial document.
func (s *FileStore) Save(_ context.Context, tableID string, hidden []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[tableID] = append([]string{}, hidden...)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("table: encode %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("table: create dir for %s: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".columns-*.json")
	if err != nil {
		return fmt.Errorf("table: write %s: %w", s.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("table: write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("table: write %s: %w", s.path, err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) read() (map[string][]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("table: read %s: %w", s.path, err)
	}
	doc := map[string][]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("table: decode %s: %w", s.path, err)
	}
	return doc, nil
}

// DefaultRedisPrefix namespaces the visibility keys.
const DefaultRedisPrefix = "formdesk:columns:"

// RedisStore keeps preferences in redis as JSON arrays, one key per table.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisStore wraps a go-redis client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Load implements VisibilityStore.
func (s *RedisStore) Load(ctx context.Context, tableID string) ([]string, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+tableID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("table: redis get %s: %w", tableID, err)
	}
	var hidden []string
	if err := json.Unmarshal([]byte(raw), &hidden); err != nil {
		return nil, false, fmt.Errorf("table: decode redis value for %s: %w", tableID, err)
	}
	return hidden, true, nil
}

// Save implements VisibilityStore. Keys never expire.
func (s *RedisStore) Save(ctx context.Context, tableID string, hidden []string) error {
	data, err := json.Marshal(append([]string{}, hidden...))
	if err != nil {
		return fmt.Errorf("table: encode redis value for %s: %w", tableID, err)
	}
	if err := s.rdb.Set(ctx, s.prefix+tableID, data, 0).Err(); err != nil {
		return fmt.Errorf("table: redis set %s: %w", tableID, err)
	}
	return nil
}
