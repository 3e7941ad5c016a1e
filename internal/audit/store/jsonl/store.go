// Package jsonl is an append-only audit store backed by a JSON Lines file.
// Queries scan the whole file, which suits single-host deployments and
// offline compliance review.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"phoneintel/internal/audit"
)

type Store struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// Open creates or opens path for appending, creating parent directories.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl audit store: empty path: %w", fs.ErrInvalid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Store{path: path, f: f}, nil
}

// Append writes one line and syncs it to disk before returning.
func (s *Store) Append(_ context.Context, rec audit.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fs.ErrClosed
	}
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return s.f.Sync()
}

func (s *Store) ListByCaller(_ context.Context, caller string) ([]audit.Record, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := []audit.Record{}
	for _, r := range all {
		if r.Caller == caller {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]audit.Record, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// readAll skips lines that do not decode, such as a torn final write.
func (s *Store) readAll() ([]audit.Record, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	var out []audit.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var r audit.Record
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
