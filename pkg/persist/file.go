package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"contract-editor/pkg/document"
)

// FileStore persists the document as one JSON file, written atomically via
// a temporary file renamed over the canonical path.
type FileStore struct {
	path  string
	queue *saveQueue
}

// NewFileStore creates the data directory if needed and starts the save
// worker.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	s := &FileStore{path: path}
	s.queue = newSaveQueue(s.writeFile)
	return s, nil
}

// Load reads the persisted document. A missing or structurally invalid
// file loads as absent.
func (s *FileStore) Load() (*document.Document, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		log.Printf("persist: ignoring invalid document in %s: %v", s.path, err)
		return nil, nil
	}
	return doc, nil
}

// Save enqueues an asynchronous write of the snapshot.
func (s *FileStore) Save(snapshot []byte) {
	s.queue.enqueue(snapshot)
}

func (s *FileStore) writeFile(data []byte) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

// Close flushes any pending write and stops the worker.
func (s *FileStore) Close() error {
	s.queue.close()
	return nil
}

var _ Gateway = (*FileStore)(nil)
