// Package metadata persists per-asset labeling data as JSON files in a
// project's target storage.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// FileSuffix is appended to the asset id to name its metadata file
const FileSuffix = "-asset.json"

// Store loads and saves AssetMetadata through a storage provider. Every value
// it returns is an independent copy.
type Store struct {
	storage storage.Provider
	version string
	logger  *slog.Logger
}

// NewStore creates a Store writing to p. version is stamped on saved metadata.
func NewStore(p storage.Provider, version string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: p, version: version, logger: logger}
}

// FileName returns the storage path of an asset's metadata
func FileName(asset types.Asset) string {
	return asset.ID + FileSuffix
}

// Get returns the metadata of asset. When nothing was saved yet it returns
// empty metadata for a copy of the asset.
func (s *Store) Get(ctx context.Context, asset types.Asset) (types.AssetMetadata, error) {
	text, err := s.storage.ReadText(ctx, FileName(asset))
	if errors.Is(err, errdefs.ErrNotFound) {
		return types.AssetMetadata{Asset: asset.Clone(), Regions: []types.Region{}, Version: s.version}, nil
	}
	if err != nil {
		return types.AssetMetadata{}, fmt.Errorf("load metadata for asset %s: %w", asset.ID, err)
	}

	var md types.AssetMetadata
	if err := json.Unmarshal([]byte(text), &md); err != nil {
		return types.AssetMetadata{}, fmt.Errorf("decode metadata for asset %s: %w", asset.ID, err)
	}
	if md.Regions == nil {
		md.Regions = []types.Region{}
	}
	return md, nil
}

// Save validates and writes md. Metadata of assets that were never visited
// is not written. The returned value is a copy of what was saved.
func (s *Store) Save(ctx context.Context, md types.AssetMetadata) (types.AssetMetadata, error) {
	out := md.Clone()
	if err := out.Asset.Validate(); err != nil {
		return types.AssetMetadata{}, err
	}
	for _, r := range out.Regions {
		if err := r.Validate(); err != nil {
			return types.AssetMetadata{}, fmt.Errorf("asset %s: %w", out.Asset.ID, err)
		}
	}
	if out.Asset.State == types.AssetStateNotVisited {
		return out, nil
	}
	if out.Version == "" {
		out.Version = s.version
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return types.AssetMetadata{}, fmt.Errorf("encode metadata for asset %s: %w", out.Asset.ID, err)
	}
	if err := s.storage.WriteText(ctx, FileName(out.Asset), string(data)); err != nil {
		return types.AssetMetadata{}, fmt.Errorf("save metadata for asset %s: %w", out.Asset.ID, err)
	}
	s.logger.Debug("asset_metadata_saved", "asset_id", out.Asset.ID, "regions", len(out.Regions))
	return out.Clone(), nil
}

// Delete removes the stored metadata of asset
func (s *Store) Delete(ctx context.Context, asset types.Asset) error {
	if err := s.storage.DeleteFile(ctx, FileName(asset)); err != nil {
		return fmt.Errorf("delete metadata for asset %s: %w", asset.ID, err)
	}
	return nil
}
