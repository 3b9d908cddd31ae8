package table

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KaramelBytes/tabstep-cli/internal/utils"
)

// ErrNotFound is returned when the working table has not been written yet.
var ErrNotFound = errors.New("no data loaded: upload a dataset first")

// Cache remembers the last decoded table keyed by file modification time and
// size. It is owned by a Store.
type Cache struct {
	mu      sync.Mutex
	modTime time.Time
	size    int64
	frame   *Frame
}

// Invalidate drops the cached table.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = nil
}

func (c *Cache) get(info fs.FileInfo) *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil || !c.modTime.Equal(info.ModTime()) || c.size != info.Size() {
		return nil
	}
	return c.frame
}

func (c *Cache) put(info fs.FileInfo, f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modTime = info.ModTime()
	c.size = info.Size()
	c.frame = f
}

// Store reads and writes the working table at one fixed path.
type Store struct {
	Path  string
	cache *Cache
}

// NewStore returns a store for path with an empty cache.
func NewStore(path string) *Store {
	return &Store{Path: path, cache: &Cache{}}
}

// Cache exposes the store's cache for explicit invalidation.
func (s *Store) Cache() *Cache { return s.cache }

// Exists reports whether the working table file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Read loads the working table. Every call returns an independent copy.
func (s *Store) Read() (*Frame, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat data: %w", err)
	}
	if f := s.cache.get(info); f != nil {
		return f.Clone(), nil
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	f, err := ReadCSV(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(s.Path), err)
	}
	s.cache.put(info, f)
	return f.Clone(), nil
}

// Write persists the table and invalidates the cache.
func (s *Store) Write(f *Frame) error {
	defer s.cache.Invalidate()
	if err := utils.EnsureDir(filepath.Dir(s.Path)); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, f); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(s.Path, buf.Bytes()); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// ReadFile decodes a CSV file outside the store, e.g. a history snapshot.
func ReadFile(path string) (*Frame, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadCSV(bytes.NewReader(b))
}
