// Package storage defines the persistence contract used for projects, asset
// metadata and export artifacts, and the registry storage providers are
// selected from.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/menta2k/image-labeler/pkg/registry"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Provider is a byte-exact read/write store addressed by slash-separated paths.
// Every call is an independent operation; nothing is atomic across calls.
type Provider interface {
	ReadText(ctx context.Context, path string) (string, error)
	ReadBinary(ctx context.Context, path string) ([]byte, error)
	WriteText(ctx context.Context, path string, content string) error
	WriteBinary(ctx context.Context, path string, data []byte) error
	DeleteFile(ctx context.Context, path string) error
	// ListFiles returns the paths of files directly under dir whose names end
	// in ext (all files when ext is empty).
	ListFiles(ctx context.Context, dir string, ext string) ([]string, error)
	ListContainers(ctx context.Context, dir string) ([]string, error)
	CreateContainer(ctx context.Context, dir string) error
	DeleteContainer(ctx context.Context, dir string) error
}

// Initializer is implemented by providers that need setup before first use
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Registry selects storage providers by name
type Registry = registry.Registry[types.ProviderOptions, Provider]

// Registration describes a storage provider
type Registration = registry.Registration[types.ProviderOptions, Provider]

// NewRegistry creates an empty storage provider registry
func NewRegistry() *Registry {
	return registry.New[types.ProviderOptions, Provider]("storage")
}

// Initialize runs p's Initialize method when it has one
func Initialize(ctx context.Context, p any) error {
	if init, ok := p.(Initializer); ok {
		return init.Initialize(ctx)
	}
	return nil
}

// CleanPath normalizes a provider path: forward slashes, no leading slash,
// no "." or ".." segments escaping the root.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Join joins path elements with forward slashes
func Join(elem ...string) string {
	return CleanPath(path.Join(elem...))
}
