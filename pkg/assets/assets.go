// Package assets defines the asset source contract and the helpers providers
// use to turn file paths and URLs into project assets.
package assets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/registry"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Provider lists the assets visible in a backing source
type Provider interface {
	// GetAssets returns the assets under containerName, or the provider's
	// default scope when containerName is empty.
	GetAssets(ctx context.Context, containerName string) ([]types.Asset, error)
}

// Initializer is implemented by providers that need setup before first use
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Registry selects asset providers by name
type Registry = registry.Registry[types.ProviderOptions, Provider]

// Registration describes an asset provider
type Registration = registry.Registration[types.ProviderOptions, Provider]

// NewRegistry creates an empty asset provider registry
func NewRegistry() *Registry {
	return registry.New[types.ProviderOptions, Provider]("asset")
}

// Initialize runs p's Initialize method when it has one
func Initialize(ctx context.Context, p Provider) error {
	if init, ok := p.(Initializer); ok {
		return init.Initialize(ctx)
	}
	return nil
}

// CreateFromPath builds a not-yet-visited asset for a file path or URL.
// The id is the md5 of the full path so the same file always maps to the
// same asset.
func CreateFromPath(filePath string) types.Asset {
	sum := md5.Sum([]byte(filePath))
	name := nameFromPath(filePath)
	return types.Asset{
		ID:     hex.EncodeToString(sum[:]),
		Name:   name,
		Path:   filePath,
		Format: utils.GetFileExtension(name),
		Type:   TypeFromName(name),
		State:  types.AssetStateNotVisited,
	}
}

// TypeFromName infers the asset type from the file extension
func TypeFromName(name string) types.AssetType {
	switch {
	case utils.IsImageFile(name):
		return types.AssetTypeImage
	case utils.IsVideoFile(name):
		return types.AssetTypeVideo
	default:
		return types.AssetTypeUnknown
	}
}

func nameFromPath(p string) string {
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		base := path.Base(u.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		if base == "/" || base == "." {
			return u.Host
		}
		return base
	}
	return filepath.Base(strings.ReplaceAll(p, "\\", "/"))
}

// Merge combines previously known assets with freshly discovered ones.
// Known assets keep their labeling state; new ones are appended in discovery
// order. Known assets no longer present in the source are kept.
func Merge(existing, discovered []types.Asset) []types.Asset {
	index := make(map[string]int, len(existing))
	out := make([]types.Asset, 0, len(existing)+len(discovered))
	for _, a := range existing {
		index[a.ID] = len(out)
		out = append(out, a.Clone())
	}
	for _, a := range discovered {
		if i, ok := index[a.ID]; ok {
			if out[i].Size == nil && a.Size != nil {
				size := *a.Size
				out[i].Size = &size
			}
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a.Clone())
	}
	return out
}
