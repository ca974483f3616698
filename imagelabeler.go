// Package imagelabeler is the core of a visual labeling tool: it resolves
// storage and asset connections through provider registries, loads and saves
// per-asset labels, and exports labeled projects to training formats.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		imagelabeler "github.com/menta2k/image-labeler"
//		"github.com/menta2k/image-labeler/pkg/types"
//	)
//
//	func main() {
//		labeler := imagelabeler.New()
//
//		project := &types.Project{
//			Name: "Pets",
//			Tags: []types.Tag{{Name: "cat"}},
//			SourceConnection: &types.Connection{
//				ProviderType:    "localFileSystemProxy",
//				ProviderOptions: types.ProviderOptions{"folderPath": "./photos"},
//			},
//			TargetConnection: &types.Connection{
//				ProviderType:    "localFileSystemProxy",
//				ProviderOptions: types.ProviderOptions{"folderPath": "./labels"},
//			},
//			ExportFormat: &types.ExportFormat{ProviderType: "csv", ProviderOptions: types.ProviderOptions{}},
//		}
//
//		ctx := context.Background()
//		assets, err := labeler.LoadAssets(ctx, project)
//		if err != nil {
//			log.Fatal(err)
//		}
//		project.Assets = assets
//
//		if err := labeler.ExportProject(ctx, project); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// Providers are looked up by name in registries owned by the Labeler. New
// registers every bundled provider; callers may register more or replace
// them (the last registration of a name wins).
//
// Bundled storage providers: localFileSystemProxy, azureBlobStorage, sqlite,
// badger. Bundled asset providers: localFileSystemProxy, azureBlobStorage,
// bingImageSearch. Bundled export formats: csv, vottJson, tensorFlowRecords,
// azureCustomVision.
package imagelabeler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/menta2k/image-labeler/pkg/assets"
	"github.com/menta2k/image-labeler/pkg/assets/bing"
	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/export"
	"github.com/menta2k/image-labeler/pkg/media"
	"github.com/menta2k/image-labeler/pkg/metadata"
	"github.com/menta2k/image-labeler/pkg/project"
	"github.com/menta2k/image-labeler/pkg/registry"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/storage/azureblob"
	"github.com/menta2k/image-labeler/pkg/storage/kvstore"
	"github.com/menta2k/image-labeler/pkg/storage/local"
	"github.com/menta2k/image-labeler/pkg/storage/sqlitestore"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Version of the image labeler library, stamped on saved metadata
const Version = "2.1.0"

// Labeler owns the provider registries and runs project operations
type Labeler struct {
	storage    *storage.Registry
	assets     *assets.Registry
	exports    *export.Registry
	fetcher    export.BlobFetcher
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Labeler
type Option func(*Labeler)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Labeler) { l.logger = logger }
}

// WithFetcher replaces the asset content fetcher
func WithFetcher(f export.BlobFetcher) Option {
	return func(l *Labeler) { l.fetcher = f }
}

// WithHTTPClient sets the client used by exporters that call remote services
func WithHTTPClient(c *http.Client) Option {
	return func(l *Labeler) { l.httpClient = c }
}

// New creates a Labeler with every bundled provider registered
func New(opts ...Option) *Labeler {
	l := &Labeler{
		storage: storage.NewRegistry(),
		assets:  assets.NewRegistry(),
		exports: export.NewRegistry(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = media.NewFetcher()
	}
	RegisterBuiltins(l.storage, l.assets, l.exports)
	return l
}

// RegisterBuiltins registers the bundled providers into the given registries
func RegisterBuiltins(s *storage.Registry, a *assets.Registry, e *export.Registry) {
	for _, reg := range []storage.Registration{
		local.StorageRegistration(),
		azureblob.StorageRegistration(),
		sqlitestore.StorageRegistration(),
		kvstore.StorageRegistration(),
	} {
		s.MustRegister(reg)
	}
	for _, reg := range []assets.Registration{
		local.AssetRegistration(),
		azureblob.AssetRegistration(),
		bing.AssetRegistration(),
	} {
		a.MustRegister(reg)
	}
	for _, reg := range export.Builtins() {
		e.MustRegister(reg)
	}
}

// StorageProviders returns the storage provider registry
func (l *Labeler) StorageProviders() *storage.Registry { return l.storage }

// AssetProviders returns the asset provider registry
func (l *Labeler) AssetProviders() *assets.Registry { return l.assets }

// ExportProviders returns the export format registry
func (l *Labeler) ExportProviders() *export.Registry { return l.exports }

// StorageFor creates and initializes the storage provider of conn. Callers
// should pass the result to Labeler.Close when done.
func (l *Labeler) StorageFor(ctx context.Context, conn *types.Connection) (storage.Provider, error) {
	p, err := registry.FromConnection(l.storage, conn)
	if err != nil {
		return nil, err
	}
	if err := storage.Initialize(ctx, p); err != nil {
		l.Close(p)
		return nil, fmt.Errorf("initialize storage %s: %w", conn.ProviderType, err)
	}
	return p, nil
}

// AssetProviderFor creates and initializes the asset provider of conn
func (l *Labeler) AssetProviderFor(ctx context.Context, conn *types.Connection) (assets.Provider, error) {
	p, err := registry.FromConnection(l.assets, conn)
	if err != nil {
		return nil, err
	}
	if err := assets.Initialize(ctx, p); err != nil {
		l.Close(p)
		return nil, fmt.Errorf("initialize asset provider %s: %w", conn.ProviderType, err)
	}
	return p, nil
}

// Close releases provider resources (database handles) when p holds any.
// A failed close is logged.
func (l *Labeler) Close(p any) {
	c, ok := p.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		l.logger.Error("provider_close_failed", "provider", fmt.Sprintf("%T", p), "error", err)
	}
}

// LoadAssets lists the source connection's assets merged with the ones the
// project already knows. Known assets keep their labeling state.
func (l *Labeler) LoadAssets(ctx context.Context, p *types.Project) ([]types.Asset, error) {
	if p == nil || p.SourceConnection == nil {
		return nil, fmt.Errorf("project has no source connection: %w", errdefs.ErrInvalidArgument)
	}
	provider, err := l.AssetProviderFor(ctx, p.SourceConnection)
	if err != nil {
		return nil, err
	}
	defer l.Close(provider)

	discovered, err := provider.GetAssets(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load assets from %s: %w", p.SourceConnection.ProviderType, err)
	}
	merged := assets.Merge(p.Assets, discovered)
	l.logger.Info("assets_loaded", "project", p.Name, "discovered", len(discovered), "total", len(merged))
	return merged, nil
}

func (l *Labeler) targetStorage(ctx context.Context, p *types.Project) (storage.Provider, error) {
	if p == nil || p.TargetConnection == nil {
		return nil, fmt.Errorf("project has no target connection: %w", errdefs.ErrInvalidArgument)
	}
	return l.StorageFor(ctx, p.TargetConnection)
}

// LoadAssetMetadata reads the labels of asset from the project target
func (l *Labeler) LoadAssetMetadata(ctx context.Context, p *types.Project, asset types.Asset) (types.AssetMetadata, error) {
	target, err := l.targetStorage(ctx, p)
	if err != nil {
		return types.AssetMetadata{}, err
	}
	defer l.Close(target)
	return metadata.NewStore(target, Version, l.logger).Get(ctx, asset)
}

// SaveAssetMetadata writes md to the project target, records the asset's
// state in the project and adds any new region tags to it
func (l *Labeler) SaveAssetMetadata(ctx context.Context, p *types.Project, md types.AssetMetadata) (types.AssetMetadata, error) {
	target, err := l.targetStorage(ctx, p)
	if err != nil {
		return types.AssetMetadata{}, err
	}
	defer l.Close(target)

	saved, err := metadata.NewStore(target, Version, l.logger).Save(ctx, md)
	if err != nil {
		return types.AssetMetadata{}, err
	}

	replaced := false
	for i := range p.Assets {
		if p.Assets[i].ID == saved.Asset.ID {
			p.Assets[i] = saved.Asset.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		p.Assets = append(p.Assets, saved.Asset.Clone())
	}

	if added := project.ReconcileTags(p, saved); len(added) > 0 {
		l.logger.Info("project_tags_added", "project", p.Name, "tags", added)
	}
	return saved, nil
}

// ExportProject runs the project's configured export format. A project
// without an export provider type is left alone.
func (l *Labeler) ExportProject(ctx context.Context, p *types.Project) error {
	if p == nil || p.ExportFormat == nil || p.ExportFormat.ProviderType == "" {
		return nil
	}
	target, err := l.targetStorage(ctx, p)
	if err != nil {
		return err
	}
	defer l.Close(target)

	options := p.ExportFormat.ProviderOptions
	if options == nil {
		options = types.ProviderOptions{}
	}
	exporter, err := l.exports.Create(p.ExportFormat.ProviderType, export.Request{
		Project:    p,
		Options:    options,
		Storage:    target,
		Metadata:   metadata.NewStore(target, Version, l.logger),
		Fetcher:    l.fetcher,
		Logger:     l.logger,
		HTTPClient: l.httpClient,
	})
	if err != nil {
		return err
	}
	if err := exporter.Export(ctx); err != nil {
		l.logger.Error("export_failed", "project", p.Name, "format", p.ExportFormat.ProviderType, "error", err)
		return fmt.Errorf("export project %s: %w", p.Name, err)
	}
	return nil
}

// PreviewOptions control RenderPreview output
type PreviewOptions struct {
	Format  string
	Quality int
	MaxSize int
}

// RenderPreview draws the asset's labeled regions over its image and saves
// the result to outPath
func (l *Labeler) RenderPreview(ctx context.Context, p *types.Project, asset types.Asset, outPath string, opts PreviewOptions) error {
	md, err := l.LoadAssetMetadata(ctx, p, asset)
	if err != nil {
		return err
	}
	data, err := l.fetcher.Fetch(ctx, asset)
	if err != nil {
		return fmt.Errorf("fetch asset %s: %w", asset.Name, err)
	}
	img, _, err := media.Decode(data)
	if err != nil {
		return fmt.Errorf("decode asset %s: %w", asset.Name, err)
	}

	overlay := media.Thumbnail(media.RenderRegions(img, md.Regions, p.Tags), opts.MaxSize)
	if err := media.SaveImage(overlay, outPath, opts.Format, opts.Quality); err != nil {
		return fmt.Errorf("save preview %s: %w", outPath, err)
	}
	l.logger.Info("preview_rendered", "asset", asset.Name, "regions", len(md.Regions), "path", outPath)
	return nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
