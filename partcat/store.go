package partcat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Filesystem Lister
// -----------------------------------------------------------------------------

// fsLister implements Lister over the local filesystem.
type fsLister struct {
	root string
}

// NewFS creates a filesystem Lister rooted at the given directory. Listed
// keys are slash-separated paths relative to root. The directory must exist.
func NewFS(root string) (Lister, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, classifyFSError(err)
	}
	if !info.IsDir() {
		return nil, ErrNotFound
	}
	return &fsLister{root: root}, nil
}

// List walks the directory named by prefix. A missing directory is
// ErrNotFound.
func (f *fsLister) List(ctx context.Context, prefix string) ([]string, error) {
	searchPath, err := f.safePathForPrefix(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(searchPath); err != nil {
		return nil, classifyFSError(err)
	}

	var paths []string
	err = filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return classifyFSError(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (f *fsLister) safePathForPrefix(path string) (string, error) {
	if path == "" {
		return f.root, nil
	}

	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." {
		return f.root, nil
	}
	if filepath.IsAbs(cleaned) {
		return "", ErrInvalidPath
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return filepath.Join(f.root, cleaned), nil
}

func classifyFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return errors.Join(ErrPermissionDenied, err)
	default:
		return err
	}
}

// -----------------------------------------------------------------------------
// Memory Lister
// -----------------------------------------------------------------------------

// Memory is an in-memory Lister for fixtures and tests.
// It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]struct{}
	err  error
}

// NewMemory creates a Memory lister holding keys. Duplicate keys collapse
// into one. It panics on a key that Put would reject as invalid.
func NewMemory(keys ...string) *Memory {
	m := &Memory{keys: make(map[string]struct{})}
	for _, k := range keys {
		if err := m.Put(k); err != nil && !errors.Is(err, ErrPathExists) {
			panic(fmt.Sprintf("partcat: NewMemory key %q: %v", k, err))
		}
	}
	return m
}

// Put adds a key. Adding an existing key returns ErrPathExists.
func (m *Memory) Put(key string) error {
	normalized, valid := normalizePathForFile(key)
	if !valid {
		return ErrInvalidPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keys[normalized]; exists {
		return ErrPathExists
	}
	m.keys[normalized] = struct{}{}
	return nil
}

// Delete removes a key. Removing a missing key is not an error.
func (m *Memory) Delete(key string) error {
	normalized, valid := normalizePathForFile(key)
	if !valid {
		return ErrInvalidPath
	}

	m.mu.Lock()
	delete(m.keys, normalized)
	m.mu.Unlock()
	return nil
}

// FailWith makes every subsequent List return err. A nil err clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// List returns the keys under prefix, sorted.
func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	normalized, valid := normalizePathForPrefix(prefix)
	if !valid {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	var paths []string
	for path := range m.keys {
		if strings.HasPrefix(path, normalized) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func normalizePathForFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	cleaned := filepath.ToSlash(filepath.Clean(path))
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "." {
		return "", false
	}
	return cleaned, true
}

// normalizePathForPrefix keeps a trailing slash so that "a/" does not match "ab/x".
func normalizePathForPrefix(path string) (string, bool) {
	if path == "" {
		return "", true
	}

	cleaned := filepath.ToSlash(filepath.Clean(path))
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == "." {
		return "", true
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	if strings.HasSuffix(path, "/") {
		cleaned += "/"
	}
	return cleaned, true
}
