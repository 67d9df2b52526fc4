// Package cache persists discovery results per repository.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smy-101/skillpack/internal/types"
)

const (
	cacheFile = "cache.json"
	keyPrefix = "skills_"
)

var cacheMutexes sync.Map

// DefaultPath returns ~/.skillpack/cache.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".skillpack", cacheFile), nil
}

// Key 缓存键 skills_{owner}/{repo}
func Key(coord types.RepositoryCoordinate) string {
	return keyPrefix + coord.FullName()
}

// RepoFromKey is the inverse of Key.
func RepoFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, keyPrefix), true
}

// Store is a JSON file holding one CachedDiscovery per repository.
type Store struct {
	path string
	now  func() time.Time
}

func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Open returns the store at the default location.
func Open() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return New(path), nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) lock() func() {
	muIface, _ := cacheMutexes.LoadOrStore(s.path, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) load() (map[string]types.CachedDiscovery, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.CachedDiscovery{}, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	entries := map[string]types.CachedDiscovery{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache: %w", err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]types.CachedDiscovery) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// Get returns the cached discovery for coord's repository, whatever branch
// it was scanned on.
func (s *Store) Get(coord types.RepositoryCoordinate) (*types.CachedDiscovery, bool, error) {
	unlock := s.lock()
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := entries[Key(coord)]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores skills for the repository, replacing any previous entry.
func (s *Store) Put(coord types.RepositoryCoordinate, skills []types.SkillDescriptor) (*types.CachedDiscovery, error) {
	return s.Record(coord.Branch, coord, skills)
}

// Record is Put for a scan that asked for requestedBranch and ended up on
// coord.Branch.
func (s *Store) Record(requestedBranch string, coord types.RepositoryCoordinate, skills []types.SkillDescriptor) (*types.CachedDiscovery, error) {
	if coord.Owner == "" || coord.Name == "" {
		return nil, fmt.Errorf("repository coordinate cannot be empty")
	}

	unlock := s.lock()
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	if skills == nil {
		skills = []types.SkillDescriptor{}
	}
	entry := types.CachedDiscovery{
		Coordinate:      coord,
		RequestedBranch: requestedBranch,
		Skills:          skills,
		ScannedAt:       s.now().UTC(),
	}
	entries[Key(coord)] = entry

	if err := s.save(entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes the repository's entry and reports whether one existed.
func (s *Store) Delete(coord types.RepositoryCoordinate) (bool, error) {
	unlock := s.lock()
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := entries[Key(coord)]; !ok {
		return false, nil
	}
	delete(entries, Key(coord))
	return true, s.save(entries)
}

// Keys returns every cache key in sorted order.
func (s *Store) Keys() ([]string, error) {
	unlock := s.lock()
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// All returns every entry ordered by key.
func (s *Store) All() ([]types.CachedDiscovery, error) {
	unlock := s.lock()
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.CachedDiscovery, 0, len(keys))
	for _, k := range keys {
		out = append(out, entries[k])
	}
	return out, nil
}

// Clear 删除全部缓存
func (s *Store) Clear() error {
	unlock := s.lock()
	defer unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
