package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/media"
	"github.com/menta2k/image-labeler/pkg/project"
	"github.com/menta2k/image-labeler/pkg/tfrecord"
	"github.com/menta2k/image-labeler/pkg/types"
)

const (
	// TFRecordsFormat is the registry name of the TensorFlow records exporter
	TFRecordsFormat = "tensorFlowRecords"
	// TFRecordsFolder is the default export folder of the TensorFlow records exporter
	TFRecordsFolder = "vott-tfrecords-export"
	// LabelMapFile is the name of the generated label map
	LabelMapFile = "tf_label_map.pbtxt"
)

// TFRecords writes one .tfrecord file per asset holding a single tf.Example
// with the encoded image and its normalized boxes, plus a label map. Image
// bytes are embedded in the records, so includeImages is not consulted.
type TFRecords struct {
	*Base
}

// NewTFRecords creates a TensorFlow records exporter
func NewTFRecords(req Request) (Provider, error) {
	base, err := NewBase(TFRecordsFormat, req, TFRecordsFolder)
	if err != nil {
		return nil, err
	}
	if err := base.requireStorage(); err != nil {
		return nil, err
	}
	return &TFRecords{Base: base}, nil
}

// Export writes the records and the label map
func (t *TFRecords) Export(ctx context.Context) error {
	results, err := t.AssetsForExport(ctx)
	if err != nil {
		return err
	}
	t.Logger.Info("export_started", "assets", len(results), "folder", t.Options.ExportFolder)

	// region tags missing from the project still need a label id
	labels := t.Project.Clone()
	project.ReconcileTags(labels, results...)

	for _, md := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := t.Fetcher.Fetch(ctx, md.Asset)
		if err != nil {
			return fmt.Errorf("fetch asset %s: %w", md.Asset.Name, err)
		}
		example, err := BuildExample(md, data, labels)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := tfrecord.NewWriter(&buf).Write(example.Marshal()); err != nil {
			return err
		}
		name := t.Path(utils.TrimExtension(md.Asset.Name) + ".tfrecord")
		if err := t.Storage.WriteBinary(ctx, name, buf.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		t.Logger.Debug("export_asset_written", "asset", md.Asset.Name, "file", name, "regions", len(md.Regions))
	}

	labelMap := t.Path(LabelMapFile)
	if err := t.Storage.WriteText(ctx, labelMap, LabelMap(labels.Tags)); err != nil {
		return fmt.Errorf("write %s: %w", labelMap, err)
	}
	t.Logger.Info("export_completed", "records", len(results), "label_map", labelMap)
	return nil
}

// BuildExample encodes one asset in the object detection tf.Example layout.
// Label ids are the 1-based positions of tags in labels.Tags.
func BuildExample(md types.AssetMetadata, data []byte, labels *types.Project) (*tfrecord.Example, error) {
	width, height, format, err := imageGeometry(md.Asset, data)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	var (
		xmin, ymin, xmax, ymax []float32
		text                   []string
		label, difficult       []int64
		truncated              []int64
		view                   []string
	)
	w, h := float64(width), float64(height)
	for _, r := range md.Regions {
		b := r.Bounds()
		for _, tag := range r.Tags {
			xmin = append(xmin, float32(b.Left/w))
			ymin = append(ymin, float32(b.Top/h))
			xmax = append(xmax, float32(b.Right()/w))
			ymax = append(ymax, float32(b.Bottom()/h))
			text = append(text, tag)
			label = append(label, int64(labels.TagIndex(tag)+1))
			difficult = append(difficult, 0)
			truncated = append(truncated, 0)
			view = append(view, "Unspecified")
		}
	}

	return tfrecord.NewExample().
		SetInt64s("image/height", int64(height)).
		SetInt64s("image/width", int64(width)).
		SetStrings("image/filename", md.Asset.Name).
		SetStrings("image/source_id", md.Asset.ID).
		SetStrings("image/key/sha256", hex.EncodeToString(sum[:])).
		SetBytes("image/encoded", data).
		SetStrings("image/format", format).
		SetFloats("image/object/bbox/xmin", xmin...).
		SetFloats("image/object/bbox/ymin", ymin...).
		SetFloats("image/object/bbox/xmax", xmax...).
		SetFloats("image/object/bbox/ymax", ymax...).
		SetStrings("image/object/class/text", text...).
		SetInt64s("image/object/class/label", label...).
		SetInt64s("image/object/difficult", difficult...).
		SetInt64s("image/object/truncated", truncated...).
		SetStrings("image/object/view", view...), nil
}

func imageGeometry(asset types.Asset, data []byte) (int, int, string, error) {
	format := strings.ToLower(asset.Format)
	if asset.Size != nil && asset.Size.Width > 0 && asset.Size.Height > 0 && format != "" {
		return asset.Size.Width, asset.Size.Height, format, nil
	}
	info, err := media.Probe(data)
	if err != nil {
		return 0, 0, "", fmt.Errorf("probe asset %s: %w", asset.Name, err)
	}
	if format == "" {
		format = info.Format
	}
	if info.Width == 0 || info.Height == 0 {
		return 0, 0, "", fmt.Errorf("asset %s has no pixels", asset.Name)
	}
	return info.Width, info.Height, format, nil
}

// LabelMap renders the object detection label map for tags
func LabelMap(tags []types.Tag) string {
	var sb strings.Builder
	for i, t := range tags {
		fmt.Fprintf(&sb, "item {\n id: %d\n name: '%s'\n}\n", i+1, strings.ReplaceAll(t.Name, "'", "\\'"))
	}
	return sb.String()
}
