// Package refdocs serves the read-only reference documents (rule sets, the
// joyo-kanji list) that reviews are grounded on.
package refdocs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize holds every catalogue document plus the kanji list.
const DefaultCacheSize = 32

// ErrInvalidName is returned for names that would escape the store root.
var ErrInvalidName = errors.New("invalid reference document name")

// MissingError reports a reference document that does not exist.
type MissingError struct {
	Name string
	Err  error
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("reference document %q not found", e.Name)
}

func (e *MissingError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return fs.ErrNotExist
}

// Store loads named documents from a directory and keeps them cached.
type Store struct {
	fsys  fs.FS
	cache *lru.Cache[string, string]
}

// New opens a store rooted at dir.
func New(dir string, cacheSize int) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reference path %s is not a directory", dir)
	}
	return NewFS(os.DirFS(dir), cacheSize)
}

// NewFS opens a store over fsys; tests pass an fstest.MapFS.
func NewFS(fsys fs.FS, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}
	return &Store{fsys: fsys, cache: cache}, nil
}

// Load returns the full text of name. The first successful read is cached;
// failures are not.
func (s *Store) Load(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || !fs.ValidPath(clean) || clean == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if text, ok := s.cache.Get(clean); ok {
		return text, nil
	}

	data, err := fs.ReadFile(s.fsys, clean)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &MissingError{Name: name, Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reference document %s: %w", name, err)
	}

	text := string(data)
	s.cache.Add(clean, text)
	return text, nil
}

// Cached reports how many documents are held in memory.
func (s *Store) Cached() int { return s.cache.Len() }
