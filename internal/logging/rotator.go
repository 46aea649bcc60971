package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileRotator is an io.Writer that rotates the underlying file when it
// exceeds a size limit, keeping a bounded number of timestamped backups.
type FileRotator struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

// NewFileRotator opens (creating if needed) the log file at path.
func NewFileRotator(path string, maxSize int64, maxBackups int) (*FileRotator, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	r := &FileRotator{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.maxSize > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate renames the current file to a timestamped backup and reopens.
// Callers must hold r.mu.
func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	backup := fmt.Sprintf("%s.%s", r.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(r.path, backup); err != nil {
		return err
	}

	r.pruneBackups()

	return r.openFile()
}

// pruneBackups deletes the oldest backups beyond maxBackups.
func (r *FileRotator) pruneBackups() {
	if r.maxBackups <= 0 {
		return
	}

	matches, err := filepath.Glob(r.path + ".*")
	if err != nil || len(matches) <= r.maxBackups {
		return
	}

	sort.Strings(matches) // timestamp suffixes sort chronologically
	for _, old := range matches[:len(matches)-r.maxBackups] {
		os.Remove(old)
	}
}

// Close closes the underlying file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
