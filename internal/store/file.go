package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/applyflow/applyflow/internal/queue"
)

const (
	queueFile        = "queue.json"
	applicationsFile = "applications.json"
)

// FileStore persists the queue snapshot and the application history as
// indented JSON files under a data directory. It satisfies queue.Store.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory when it does not exist yet.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) SaveQueue(_ context.Context, items []*queue.Item) error {
	return s.writeJSON(queueFile, items)
}

func (s *FileStore) LoadQueue(_ context.Context) ([]*queue.Item, error) {
	var items []*queue.Item
	if err := s.readJSON(queueFile, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *FileStore) SaveApplications(_ context.Context, records []queue.ApplicationRecord) error {
	return s.writeJSON(applicationsFile, records)
}

func (s *FileStore) LoadApplications(_ context.Context) ([]queue.ApplicationRecord, error) {
	var records []queue.ApplicationRecord
	if err := s.readJSON(applicationsFile, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// writeJSON writes to a temp file first and renames it into place, so a
// crash mid-write never corrupts the previous snapshot.
func (s *FileStore) writeJSON(name string, v any) error {
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// readJSON decodes a collection file. A missing or empty file yields an
// empty collection, not an error.
func (s *FileStore) readJSON(name string, v any) error {
	path := filepath.Join(s.dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, v)
}
