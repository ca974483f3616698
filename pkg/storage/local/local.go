// Package local implements the local filesystem connection. One value serves
// both as a storage provider (export target) and as an asset source.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/assets"
	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// ProviderName is the registry key of the local filesystem provider
const ProviderName = "localFileSystemProxy"

// FileSystem reads and writes below a root folder
type FileSystem struct {
	root string
}

// New creates a FileSystem rooted at folderPath
func New(folderPath string) (*FileSystem, error) {
	if strings.TrimSpace(folderPath) == "" {
		return nil, fmt.Errorf("local filesystem: folderPath is required: %w", errdefs.ErrInvalidArgument)
	}
	return &FileSystem{root: filepath.Clean(folderPath)}, nil
}

// FromOptions builds a FileSystem from connection options
func FromOptions(opts types.ProviderOptions) (*FileSystem, error) {
	return New(opts.String("folderPath"))
}

// StorageRegistration describes the provider for the storage registry
func StorageRegistration() storage.Registration {
	return storage.Registration{
		Name:        ProviderName,
		DisplayName: "Local File System",
		Description: "Read and write files in a folder on this machine",
		Factory: func(opts types.ProviderOptions) (storage.Provider, error) {
			return FromOptions(opts)
		},
	}
}

// AssetRegistration describes the provider for the asset registry
func AssetRegistration() assets.Registration {
	return assets.Registration{
		Name:        ProviderName,
		DisplayName: "Local File System",
		Description: "Images and videos in a folder on this machine",
		Factory: func(opts types.ProviderOptions) (assets.Provider, error) {
			return FromOptions(opts)
		},
	}
}

// Root returns the root folder
func (f *FileSystem) Root() string { return f.root }

// Initialize creates the root folder when it is missing
func (f *FileSystem) Initialize(_ context.Context) error {
	if err := utils.EnsureDir(f.root); err != nil {
		return fmt.Errorf("create folder %s: %w", f.root, err)
	}
	return nil
}

func (f *FileSystem) abs(p string) string {
	return filepath.Join(f.root, filepath.FromSlash(storage.CleanPath(p)))
}

func (f *FileSystem) rel(abs string) string {
	r, err := filepath.Rel(f.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

func mapErr(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, p, errdefs.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}

// ReadText reads a file as a string
func (f *FileSystem) ReadText(ctx context.Context, p string) (string, error) {
	data, err := f.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary reads a file's bytes
func (f *FileSystem) ReadBinary(_ context.Context, p string) ([]byte, error) {
	data, err := os.ReadFile(f.abs(p))
	if err != nil {
		return nil, mapErr("read", p, err)
	}
	return data, nil
}

// WriteText writes content, creating parent folders as needed
func (f *FileSystem) WriteText(ctx context.Context, p string, content string) error {
	return f.WriteBinary(ctx, p, []byte(content))
}

// WriteBinary writes data, creating parent folders as needed
func (f *FileSystem) WriteBinary(_ context.Context, p string, data []byte) error {
	target := f.abs(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", p, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// DeleteFile removes a file; a missing file is not an error
func (f *FileSystem) DeleteFile(_ context.Context, p string) error {
	if err := os.Remove(f.abs(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// ListFiles lists files directly under dir ending in ext
func (f *FileSystem) ListFiles(_ context.Context, dir string, ext string) ([]string, error) {
	entries, err := os.ReadDir(f.abs(dir))
	if err != nil {
		return nil, mapErr("list", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			out = append(out, storage.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// ListContainers lists folders directly under dir
func (f *FileSystem) ListContainers(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(f.abs(dir))
	if err != nil {
		return nil, mapErr("list", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, storage.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// CreateContainer creates a folder
func (f *FileSystem) CreateContainer(_ context.Context, dir string) error {
	if err := os.MkdirAll(f.abs(dir), 0o755); err != nil {
		return fmt.Errorf("create container %s: %w", dir, err)
	}
	return nil
}

// DeleteContainer removes a folder and its contents
func (f *FileSystem) DeleteContainer(_ context.Context, dir string) error {
	target := f.abs(dir)
	if target == f.root {
		return fmt.Errorf("refusing to delete root folder %s: %w", f.root, errdefs.ErrInvalidArgument)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("delete container %s: %w", dir, err)
	}
	return nil
}

// GetAssets lists the image and video files in the root folder, or in the
// named sub-folder
func (f *FileSystem) GetAssets(_ context.Context, containerName string) ([]types.Asset, error) {
	dir := f.root
	if containerName != "" {
		dir = f.abs(containerName)
	}
	if !utils.DirExists(dir) {
		return nil, fmt.Errorf("asset folder %s: %w", dir, errdefs.ErrNotFound)
	}
	files, err := utils.ListMediaFiles(dir)
	if err != nil {
		return nil, mapErr("list assets in", dir, err)
	}
	sort.Strings(files)

	out := make([]types.Asset, 0, len(files))
	for _, file := range files {
		out = append(out, assets.CreateFromPath(file))
	}
	return out, nil
}

var (
	_ storage.Provider    = (*FileSystem)(nil)
	_ storage.Initializer = (*FileSystem)(nil)
	_ assets.Provider     = (*FileSystem)(nil)
)
