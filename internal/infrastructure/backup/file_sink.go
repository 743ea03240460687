package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// archivePrefix marks the files FileSink owns; rotation ignores anything else
const archivePrefix = "ledger-"

// FileSink writes archives into a directory and keeps the newest maxCount
type FileSink struct {
	dir      string
	maxCount int
	logger   *zap.Logger
}

// NewFileSink creates a FileSink. A maxCount of zero keeps every archive.
func NewFileSink(dir string, maxCount int, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{dir: dir, maxCount: maxCount, logger: logger}
}

// Name implements Sink
func (s *FileSink) Name() string {
	return "file"
}

// Dir returns the archive directory
func (s *FileSink) Dir() string {
	return s.dir
}

// Put writes the archive atomically, then prunes the oldest archives
func (s *FileSink) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	final := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish archive: %w", err)
	}

	return s.rotate()
}

// List returns the archive names in the directory, oldest first
func (s *FileSink) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backup dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), archivePrefix) {
			continue
		}
		names = append(names, e.Name())
	}
	// names start with a UTC timestamp, so lexical order is age order
	sort.Strings(names)
	return names, nil
}

// Latest returns the path of the newest archive
func (s *FileSink) Latest() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no archives in %s", s.dir)
	}
	return filepath.Join(s.dir, names[len(names)-1]), nil
}

func (s *FileSink) rotate() error {
	if s.maxCount <= 0 {
		return nil
	}
	names, err := s.List()
	if err != nil {
		return err
	}
	for len(names) > s.maxCount {
		victim := filepath.Join(s.dir, names[0])
		if err := os.Remove(victim); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old archive: %w", err)
		}
		s.logger.Info("old backup removed", zap.String("path", victim))
		names = names[1:]
	}
	return nil
}
