package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/menta2k/image-labeler/pkg/types"
)

const (
	// JSONFormat is the registry name of the VoTT JSON exporter
	JSONFormat = "vottJson"
	// JSONFolder is the default export folder of the VoTT JSON exporter
	JSONFolder = "vott-json-export"
)

// jsonDocument is the project with its asset list replaced by the metadata of
// each exported asset, keyed by asset id
type jsonDocument struct {
	types.Project
	Assets map[string]types.AssetMetadata `json:"assets"`
}

// JSON writes the project and the metadata of every exported asset to
// <folder>/<project>-export.json
type JSON struct {
	*Base
}

// NewJSON creates a VoTT JSON exporter
func NewJSON(req Request) (Provider, error) {
	base, err := NewBase(JSONFormat, req, JSONFolder)
	if err != nil {
		return nil, err
	}
	if err := base.requireStorage(); err != nil {
		return nil, err
	}
	return &JSON{Base: base}, nil
}

// FileName returns the path of the JSON document
func (j *JSON) FileName() string {
	return j.Path(j.FileStem() + "-export.json")
}

// Export copies each selected asset and writes the JSON document
func (j *JSON) Export(ctx context.Context) error {
	results, err := j.AssetsForExport(ctx)
	if err != nil {
		return err
	}
	j.Logger.Info("export_started", "assets", len(results), "folder", j.Options.ExportFolder)

	// connection and export options carry credentials
	project := j.Project.Clone()
	project.SourceConnection = nil
	project.TargetConnection = nil
	project.ExportFormat = nil

	doc := jsonDocument{Project: *project, Assets: make(map[string]types.AssetMetadata, len(results))}
	for _, md := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if j.Options.IncludeImages {
			if _, err := j.FetchAsset(ctx, md.Asset); err != nil {
				return err
			}
		}
		doc.Assets[md.Asset.ID] = md
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	fileName := j.FileName()
	if err := j.Storage.WriteText(ctx, fileName, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	j.Logger.Info("export_completed", "file", fileName, "assets", len(doc.Assets))
	return nil
}
