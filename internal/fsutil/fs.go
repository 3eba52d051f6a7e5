// Package fsutil reads and replaces whole text files that devassist does not
// own. Writes go through a temporary file and a rename so a failure never
// leaves the target half-written.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrConcurrentModification is returned by Update when the file changed on
// disk between the read and the write.
var ErrConcurrentModification = errors.New("file changed on disk since it was read")

// DefaultFileMode is used when writing a file that does not exist yet
const DefaultFileMode os.FileMode = 0644

// FS serializes read-modify-write cycles per path. Within one process a mutex
// per path is always held; when LockDir is set an advisory flock on a file in
// that directory also guards against other devassist processes. Editors that
// ignore the lock are caught by the re-read check in Update.
type FS struct {
	LockDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an FS that keeps its advisory lock files in lockDir.
func New(lockDir string) *FS {
	return &FS{LockDir: lockDir}
}

// Exists reports whether path exists
func (f *FS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadText returns the whole file as a string
func (f *FS) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText replaces path with content. An existing file keeps its permission
// bits; a new file is created with mode.
func (f *FS) WriteText(path, content string, mode os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Update runs a read-modify-write cycle on an existing file. fn receives the
// current content and returns the desired content. Nothing is written when
// the content is unchanged or fn fails. The returned bool reports whether the
// file was rewritten.
func (f *FS) Update(path string, fn func(current string) (string, error)) (bool, error) {
	unlock, err := f.lock(path)
	if err != nil {
		return false, err
	}
	defer unlock()

	current, err := f.ReadText(path)
	if err != nil {
		return false, err
	}

	next, err := fn(current)
	if err != nil {
		return false, err
	}
	if next == current {
		return false, nil
	}

	again, err := f.ReadText(path)
	if err != nil {
		return false, err
	}
	if again != current {
		return false, fmt.Errorf("%s: %w", path, ErrConcurrentModification)
	}

	if err := f.WriteText(path, next, DefaultFileMode); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes path. A missing file is not an error.
func (f *FS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (f *FS) lock(path string) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	f.mu.Lock()
	if f.locks == nil {
		f.locks = make(map[string]*sync.Mutex)
	}
	m, ok := f.locks[abs]
	if !ok {
		m = &sync.Mutex{}
		f.locks[abs] = m
	}
	f.mu.Unlock()

	m.Lock()
	if f.LockDir == "" {
		return m.Unlock, nil
	}

	if err := os.MkdirAll(f.LockDir, 0755); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	release, err := lockFile(filepath.Join(f.LockDir, hex.EncodeToString(sum[:])[:16]+".lock"))
	if err != nil {
		m.Unlock()
		return nil, err
	}
	return func() {
		release()
		m.Unlock()
	}, nil
}
