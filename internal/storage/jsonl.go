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

	"lidoDigest/internal/model"
)

// JsonlArchive appends digest runs to a JSONL file.
type JsonlArchive struct {
	path string
	mu   sync.Mutex
}

func NewJsonlArchive(path string) *JsonlArchive {
	return &JsonlArchive{path: path}
}

// PutRun appends one run as a JSON line.
func (s *JsonlArchive) PutRun(_ context.Context, run model.DigestRun) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
	}

	var line bytes.Buffer
	if err := json.NewEncoder(&line).Encode(run); err != nil {
		return fmt.Errorf("encode digest run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if _, err := file.Write(line.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("append digest run: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// ReadRuns returns every run stored in a JSONL archive, oldest first.
func ReadRuns(path string) ([]model.DigestRun, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var runs []model.DigestRun
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var run model.DigestRun
		if err := json.Unmarshal(line, &run); err != nil {
			return nil, fmt.Errorf("decode digest run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	return runs, nil
}
