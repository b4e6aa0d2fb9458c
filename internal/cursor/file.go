package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"evmswaps/internal/model"
)

type fileEntry struct {
	Current   model.Position `json:"current"`
	Initial   model.Position `json:"initial"`
	UpdatedAt string         `json:"updated_at"`
}

// FileStore persists checkpoints for all streams in one JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get(_ context.Context, streamID string) (model.Checkpoint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return model.Checkpoint{}, false, err
	}
	entry, ok := entries[streamID]
	if !ok {
		return model.Checkpoint{}, false, nil
	}
	return model.Checkpoint{Current: entry.Current, Initial: entry.Initial}, true, nil
}

func (f *FileStore) Save(_ context.Context, streamID string, current, initial model.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entry, ok := entries[streamID]
	if !ok {
		entry.Initial = initial
	}
	entry.Current = current
	entry.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	entries[streamID] = entry

	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

func (f *FileStore) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)

	stat, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return entries, nil
}
