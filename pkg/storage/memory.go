package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/menta2k/image-labeler/pkg/errdefs"
)

// Memory is an in-process Provider. It backs tests and dry runs.
type Memory struct {
	mu         sync.RWMutex
	files      map[string][]byte
	containers map[string]bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		files:      make(map[string][]byte),
		containers: make(map[string]bool),
	}
}

// ReadText reads a file as a string
func (m *Memory) ReadText(ctx context.Context, p string) (string, error) {
	data, err := m.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary returns a copy of a file's bytes
func (m *Memory) ReadBinary(_ context.Context, p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[CleanPath(p)]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, errdefs.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// WriteText stores content as the file's bytes
func (m *Memory) WriteText(ctx context.Context, p string, content string) error {
	return m.WriteBinary(ctx, p, []byte(content))
}

// WriteBinary stores a copy of data
func (m *Memory) WriteBinary(_ context.Context, p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[CleanPath(p)] = append([]byte(nil), data...)
	return nil
}

// DeleteFile removes a file; deleting a missing file is not an error
func (m *Memory) DeleteFile(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, CleanPath(p))
	return nil
}

// ListFiles lists files directly under dir
func (m *Memory) ListFiles(_ context.Context, dir string, ext string) ([]string, error) {
	dir = CleanPath(dir)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p := range m.files {
		if parent(p) == dir && strings.HasSuffix(p, ext) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListContainers lists containers directly under dir
func (m *Memory) ListContainers(_ context.Context, dir string) ([]string, error) {
	dir = CleanPath(dir)
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	for c := range m.containers {
		if parent(c) == dir {
			seen[c] = true
		}
	}
	for p := range m.files {
		if d := parent(p); d != "" && parent(d) == dir {
			seen[d] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// CreateContainer records an empty container
func (m *Memory) CreateContainer(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[CleanPath(dir)] = true
	return nil
}

// DeleteContainer removes a container and every file below it
func (m *Memory) DeleteContainer(_ context.Context, dir string) error {
	dir = CleanPath(dir)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, dir)
	for p := range m.files {
		if strings.HasPrefix(p, dir+"/") {
			delete(m.files, p)
		}
	}
	return nil
}

// Files returns the stored paths in sorted order
func (m *Memory) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func parent(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}
