// Package bookmarks keeps the set of event URLs a user has marked.
//
// The set is persisted as a plain JSON array of URLs, the same shape the web
// front end keeps under its "bookmarkedEvents" key, so a file can be moved
// between the two.
package bookmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pfrederiksen/wako-events/internal/config"
	"github.com/pfrederiksen/wako-events/internal/storage"
)

// Set is a membership set of event URLs.
type Set map[string]struct{}

// Store defines the interface for bookmark storage
type Store interface {
	Load() (Set, error)
	Save(set Set) error
}

// New creates a set holding urls.
func New(urls ...string) Set {
	s := make(Set, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add marks url. It returns false if url was already marked or is empty.
func (s Set) Add(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	if _, ok := s[url]; ok {
		return false
	}
	s[url] = struct{}{}
	return true
}

// Remove unmarks url. It returns false if url was not marked.
func (s Set) Remove(url string) bool {
	url = strings.TrimSpace(url)
	if _, ok := s[url]; !ok {
		return false
	}
	delete(s, url)
	return true
}

// Toggle flips the membership of url and reports whether it is now marked.
func (s Set) Toggle(url string) bool {
	if s.Remove(url) {
		return false
	}
	return s.Add(url)
}

// Has reports whether url is marked.
func (s Set) Has(url string) bool {
	_, ok := s[strings.TrimSpace(url)]
	return ok
}

// URLs returns the marked URLs in sorted order.
func (s Set) URLs() []string {
	urls := make([]string, 0, len(s))
	for u := range s {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// ToJSON marshals the set as a JSON array.
func (s Set) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s.URLs(), "", "  ")
}

// FromJSON unmarshals a JSON array of URLs.
func FromJSON(data []byte) (Set, error) {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("unmarshaling bookmarks: %w", err)
	}
	return New(urls...), nil
}

// FileStore implements Store on a local JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path. A leading "~/" is expanded.
func NewFileStore(path string) (*FileStore, error) {
	path, err := config.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the set. A missing file is an empty set.
func (f *FileStore) Load() (Set, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading bookmarks: %w", err)
	}
	return FromJSON(data)
}

// Save replaces the file with set.
func (f *FileStore) Save(set Set) error {
	data, err := set.ToJSON()
	if err != nil {
		return fmt.Errorf("encoding bookmarks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating bookmarks directory: %w", err)
	}
	if err := storage.WriteFileAtomic(f.path, append(data, '\n')); err != nil {
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	return nil
}
