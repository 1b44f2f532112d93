package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pfrederiksen/wako-events/internal/config"
	"github.com/pfrederiksen/wako-events/internal/event"
)

// ErrCorrupt is returned by Load when the snapshot is not a JSON event array.
var ErrCorrupt = errors.New("snapshot is corrupt")

// ErrNotFound is returned by FindByID when no event has the ID.
var ErrNotFound = errors.New("event not found")

// rename is replaced in tests to simulate a failed replace.
var rename = os.Rename

// Storage handles persistence of the event snapshot
type Storage struct {
	path string
}

// New creates a new Storage writing to path, creating its directory.
func New(path string) (*Storage, error) {
	path, err := config.ExpandHome(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		path: path,
	}, nil
}

// Path returns the snapshot location.
func (s *Storage) Path() string {
	return s.path
}

// Exists reports whether a snapshot has been written.
func (s *Storage) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the snapshot. A missing snapshot yields an empty list.
func (s *Storage) Load() ([]event.Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []event.Event{}, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w: %v", s.path, ErrCorrupt, err)
	}
	if events == nil {
		events = []event.Event{}
	}
	for i := range events {
		if events[i].Categories == nil {
			events[i].Categories = []string{}
		}
	}
	return events, nil
}

// Save replaces the snapshot with events. On any failure the previous
// snapshot is left untouched.
func (s *Storage) Save(events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	data = append(data, '\n')

	return writeAtomic(s.path, data)
}

// FindByID returns the snapshot event with the given ID.
func (s *Storage) FindByID(id string) (*event.Event, error) {
	events, err := s.Load()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	for i := range events {
		if events[i].ID() == id {
			return &events[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// WriteFileAtomic writes data to path through a synced temporary file and a
// rename.
func WriteFileAtomic(path string, data []byte) error {
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
