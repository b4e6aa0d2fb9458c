package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"evmswaps/internal/model"
)

const maxLineSize = 4 << 20

// JsonlSink writes canonical swaps to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// Write appends a batch of swaps as JSON lines. A failed write truncates the
// file back to its previous size.
func (s *JsonlSink) Write(_ context.Context, rows []model.CanonicalSwap) error {
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal swap: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := s.ensureDir(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat output file: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Truncate(stat.Size())
		return fmt.Errorf("write swaps: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Truncate(stat.Size())
		return fmt.Errorf("sync output: %w", err)
	}

	return nil
}

// CleanupAfter rewrites the file without rows past cutoff.
func (s *JsonlSink) CleanupAfter(_ context.Context, cutoff uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open output file: %w", err)
	}
	defer src.Close()

	tmpPath := s.path + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create cleanup tmp: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			dst.Close()
		}
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	writer := bufio.NewWriter(dst)
	removed := 0
	for scanner.Scan() {
		var row struct {
			Block struct {
				Number uint64 `json:"number"`
			} `json:"block"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return fmt.Errorf("parse output line: %w", err)
		}
		if row.Block.Number > cutoff {
			removed++
			continue
		}
		if _, err := writer.Write(scanner.Bytes()); err != nil {
			return fmt.Errorf("write cleanup tmp: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan output file: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush cleanup tmp: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync cleanup tmp: %w", err)
	}
	closed = true
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close cleanup tmp: %w", err)
	}

	if removed == 0 {
		return os.Remove(tmpPath)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename cleanup tmp: %w", err)
	}
	return nil
}

func (s *JsonlSink) Close() error {
	return nil
}

func (s *JsonlSink) ensureDir() error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return nil
}
