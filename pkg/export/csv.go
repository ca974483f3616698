package export

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/image-labeler/pkg/types"
)

const (
	// CSVFormat is the registry name of the CSV exporter
	CSVFormat = "csv"
	// CSVFolder is the default export folder of the CSV exporter
	CSVFolder = "vott-csv-export"
)

// CSV writes one row per (region, tag) pair:
//
//	"<asset-name>",<xmin>,<ymin>,<xmax>,<ymax>,<tag>
//
// Rows are joined by "\n" with no header and no trailing newline. The CSV
// file is only written after every asset image has been copied.
type CSV struct {
	*Base
}

// NewCSV creates a CSV exporter
func NewCSV(req Request) (Provider, error) {
	base, err := NewBase(CSVFormat, req, CSVFolder)
	if err != nil {
		return nil, err
	}
	if err := base.requireStorage(); err != nil {
		return nil, err
	}
	return &CSV{Base: base}, nil
}

// FileName returns the path of the CSV file
func (c *CSV) FileName() string {
	return c.Path(c.FileStem() + "-export.csv")
}

// Export copies each selected asset and writes the CSV file
func (c *CSV) Export(ctx context.Context) error {
	results, err := c.AssetsForExport(ctx)
	if err != nil {
		return err
	}
	c.Logger.Info("export_started", "assets", len(results), "folder", c.Options.ExportFolder)

	var rows []string
	for _, md := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Options.IncludeImages {
			if _, err := c.FetchAsset(ctx, md.Asset); err != nil {
				return err
			}
		}
		rows = append(rows, Rows(md)...)
		c.Logger.Debug("export_asset_written", "asset", md.Asset.Name, "regions", len(md.Regions))
	}

	fileName := c.FileName()
	if err := c.Storage.WriteText(ctx, fileName, strings.Join(rows, "\n")); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	c.Logger.Info("export_completed", "file", fileName, "rows", len(rows))
	return nil
}

// Rows returns the CSV rows of one asset in region then tag order
func Rows(md types.AssetMetadata) []string {
	var rows []string
	for _, r := range md.Regions {
		for _, tag := range r.Tags {
			rows = append(rows, Row(md.Asset.Name, r.BoundingBox, tag))
		}
	}
	return rows
}

// Row formats one CSV row. Coordinates are rounded half up; quotes inside
// the asset name are doubled.
func Row(assetName string, box types.BoundingBox, tag string) string {
	return strings.Join([]string{
		`"` + strings.ReplaceAll(assetName, `"`, `""`) + `"`,
		roundString(box.Left),
		roundString(box.Top),
		roundString(box.Left + box.Width),
		roundString(box.Top + box.Height),
		tag,
	}, ",")
}

func roundString(v float64) string {
	return strconv.FormatInt(int64(math.Floor(v+0.5)), 10)
}
