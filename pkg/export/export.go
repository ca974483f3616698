// Package export turns a labeled project into downstream training formats.
// Each format is an export provider created through a Registry from a Request;
// the shared selection, blob copying and path logic lives in Base.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/registry"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Provider exports one project in one format
type Provider interface {
	Export(ctx context.Context) error
}

// BlobFetcher returns the binary content of an asset
type BlobFetcher interface {
	Fetch(ctx context.Context, asset types.Asset) ([]byte, error)
}

// MetadataSource loads the labeling data of an asset
type MetadataSource interface {
	Get(ctx context.Context, asset types.Asset) (types.AssetMetadata, error)
}

// Request carries everything an export provider factory needs
type Request struct {
	Project  *types.Project
	Options  types.ProviderOptions
	Storage  storage.Provider
	Metadata MetadataSource
	Fetcher  BlobFetcher
	Logger   *slog.Logger
	// HTTPClient is used by formats that upload to a remote service
	HTTPClient *http.Client
}

// Registry selects export providers by format name
type Registry = registry.Registry[Request, Provider]

// Registration describes an export format
type Registration = registry.Registration[Request, Provider]

// NewRegistry creates an empty export provider registry
func NewRegistry() *Registry {
	return registry.New[Request, Provider]("export")
}

// Builtins returns the registrations of every bundled format
func Builtins() []Registration {
	return []Registration{
		{Name: CSVFormat, DisplayName: "Comma Separated Values (CSV)", Description: "One row per tagged region", Factory: NewCSV},
		{Name: JSONFormat, DisplayName: "VoTT JSON", Description: "Project and asset metadata as one JSON document", Factory: NewJSON},
		{Name: TFRecordsFormat, DisplayName: "TensorFlow Records", Description: "tf.Example records for the object detection API", Factory: NewTFRecords},
		{Name: AzureCustomVisionFormat, DisplayName: "Azure Custom Vision Service", Description: "Upload images and regions to a Custom Vision project", Factory: NewAzureCustomVision},
	}
}

// AssetState selects which assets an export includes
type AssetState string

const (
	AssetStateAll     AssetState = "all"
	AssetStateVisited AssetState = "visited"
	AssetStateTagged  AssetState = "tagged"
)

// Options are the settings shared by every format
type Options struct {
	AssetState    AssetState
	IncludeImages bool
	ExportFolder  string
}

// ParseOptions reads the common options, applying defaults
func ParseOptions(opts types.ProviderOptions, defaultFolder string) (Options, error) {
	o := Options{
		AssetState:    AssetState(strings.ToLower(opts.StringOr("assetState", string(AssetStateVisited)))),
		IncludeImages: opts.Bool("includeImages", true),
		ExportFolder:  storage.CleanPath(opts.StringOr("exportFolder", defaultFolder)),
	}
	switch o.AssetState {
	case AssetStateAll, AssetStateVisited, AssetStateTagged:
	default:
		return Options{}, fmt.Errorf("unknown assetState %q: %w", o.AssetState, errdefs.ErrInvalidArgument)
	}
	return o, nil
}

// Base holds the state and helpers shared by export providers
type Base struct {
	Project  *types.Project
	Options  Options
	Raw      types.ProviderOptions
	Storage  storage.Provider
	Metadata MetadataSource
	Fetcher  BlobFetcher
	Logger   *slog.Logger
	format   string
}

// NewBase validates req for the named format. The export folder defaults to
// defaultFolder.
func NewBase(format string, req Request, defaultFolder string) (*Base, error) {
	if req.Project == nil {
		return nil, fmt.Errorf("%s export: project is required: %w", format, errdefs.ErrInvalidArgument)
	}
	if req.Options == nil {
		return nil, fmt.Errorf("%s export: options are required: %w", format, errdefs.ErrInvalidArgument)
	}
	if req.Metadata == nil || req.Fetcher == nil {
		return nil, fmt.Errorf("%s export: metadata source and blob fetcher are required: %w", format, errdefs.ErrInvalidArgument)
	}
	opts, err := ParseOptions(req.Options, defaultFolder)
	if err != nil {
		return nil, fmt.Errorf("%s export: %w", format, err)
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		Project:  req.Project,
		Options:  opts,
		Raw:      req.Options,
		Storage:  req.Storage,
		Metadata: req.Metadata,
		Fetcher:  req.Fetcher,
		Logger:   logger.With("format", format, "project", req.Project.Name),
		format:   format,
	}, nil
}

func (b *Base) requireStorage() error {
	if b.Storage == nil {
		return fmt.Errorf("%s export: target storage is required: %w", b.format, errdefs.ErrInvalidArgument)
	}
	return nil
}

func (b *Base) selected(a types.Asset) bool {
	switch b.Options.AssetState {
	case AssetStateAll:
		return true
	case AssetStateTagged:
		return a.State == types.AssetStateTagged
	default:
		return a.State == types.AssetStateVisited || a.State == types.AssetStateTagged
	}
}

// AssetsForExport returns the metadata of every selected asset in project
// order. Root video assets are skipped; their frames are exported instead.
func (b *Base) AssetsForExport(ctx context.Context) ([]types.AssetMetadata, error) {
	var out []types.AssetMetadata
	for _, a := range b.Project.Assets {
		if !b.selected(a) || (a.Type == types.AssetTypeVideo && a.IsRoot()) {
			continue
		}
		md, err := b.Metadata.Get(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("load metadata for %s: %w", a.Name, err)
		}
		out = append(out, md)
	}
	return out, nil
}

// Path joins name onto the export folder
func (b *Base) Path(name string) string {
	return storage.Join(b.Options.ExportFolder, name)
}

// FileStem is the project name with spaces replaced by hyphens
func (b *Base) FileStem() string {
	return utils.HyphenateSpaces(b.Project.Name)
}

// FetchAsset returns the asset's bytes and, when images are included, writes
// them to <export folder>/<asset name>
func (b *Base) FetchAsset(ctx context.Context, asset types.Asset) ([]byte, error) {
	data, err := b.Fetcher.Fetch(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", asset.Name, err)
	}
	if b.Options.IncludeImages && b.Storage != nil {
		if err := b.Storage.WriteBinary(ctx, b.Path(asset.Name), data); err != nil {
			return nil, fmt.Errorf("write asset %s: %w", asset.Name, err)
		}
	}
	return data, nil
}
