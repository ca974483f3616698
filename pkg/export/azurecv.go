package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/media"
	"github.com/menta2k/image-labeler/pkg/project"
	"github.com/menta2k/image-labeler/pkg/types"
)

const (
	// AzureCustomVisionFormat is the registry name of the Custom Vision exporter
	AzureCustomVisionFormat = "azureCustomVision"

	defaultCustomVisionRegion = "southcentralus"
)

// AzureCustomVision uploads assets and their regions to an existing Custom
// Vision project through the training REST API. Its target is the remote
// service; the storage provider is not used.
type AzureCustomVision struct {
	*Base
	apiKey    string
	projectID string
	endpoint  string
	client    *http.Client
}

// NewAzureCustomVision creates a Custom Vision exporter. Options: apiKey and
// projectId (required), region or endpoint.
func NewAzureCustomVision(req Request) (Provider, error) {
	base, err := NewBase(AzureCustomVisionFormat, req, "")
	if err != nil {
		return nil, err
	}
	if err := req.Options.Require("apiKey", "projectId"); err != nil {
		return nil, fmt.Errorf("%s export: %v: %w", AzureCustomVisionFormat, err, errdefs.ErrInvalidArgument)
	}
	endpoint := req.Options.String("endpoint")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", req.Options.StringOr("region", defaultCustomVisionRegion))
	}
	client := req.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &AzureCustomVision{
		Base:      base,
		apiKey:    req.Options.String("apiKey"),
		projectID: req.Options.String("projectId"),
		endpoint:  strings.TrimRight(endpoint, "/"),
		client:    client,
	}, nil
}

type cvTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type cvImageSummary struct {
	IsBatchSuccessful bool `json:"isBatchSuccessful"`
	Images            []struct {
		Status string `json:"status"`
		Image  *struct {
			ID string `json:"id"`
		} `json:"image"`
	} `json:"images"`
}

type cvRegion struct {
	ImageID string  `json:"imageId"`
	TagID   string  `json:"tagId"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Export ensures the project tags exist remotely, then uploads every
// selected asset with its normalized regions
func (a *AzureCustomVision) Export(ctx context.Context) error {
	results, err := a.AssetsForExport(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("export_started", "assets", len(results), "custom_vision_project", a.projectID)

	// region tags missing from the project are created remotely too
	labels := a.Project.Clone()
	project.ReconcileTags(labels, results...)

	tagIDs, err := a.ensureTags(ctx, labels.Tags)
	if err != nil {
		return err
	}

	for _, md := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := a.Fetcher.Fetch(ctx, md.Asset)
		if err != nil {
			return fmt.Errorf("fetch asset %s: %w", md.Asset.Name, err)
		}
		imageID, err := a.uploadImage(ctx, md.Asset, data)
		if err != nil {
			return err
		}
		regions, err := normalizedRegions(md, data, imageID, tagIDs)
		if err != nil {
			return err
		}
		if len(regions) > 0 {
			body, err := json.Marshal(map[string]any{"regions": regions})
			if err != nil {
				return fmt.Errorf("encode regions for %s: %w", md.Asset.Name, err)
			}
			if err := a.call(ctx, http.MethodPost, "/images/regions", "application/json", body, nil); err != nil {
				return fmt.Errorf("create regions for %s: %w", md.Asset.Name, err)
			}
		}
		a.Logger.Debug("export_asset_written", "asset", md.Asset.Name, "image_id", imageID, "regions", len(regions))
	}

	a.Logger.Info("export_completed", "assets", len(results))
	return nil
}

func (a *AzureCustomVision) ensureTags(ctx context.Context, tags []types.Tag) (map[string]string, error) {
	var existing []cvTag
	if err := a.call(ctx, http.MethodGet, "/tags", "", nil, &existing); err != nil {
		return nil, fmt.Errorf("list custom vision tags: %w", err)
	}
	ids := make(map[string]string, len(existing))
	for _, t := range existing {
		ids[t.Name] = t.ID
	}
	for _, t := range tags {
		if _, ok := ids[t.Name]; ok {
			continue
		}
		var created cvTag
		if err := a.call(ctx, http.MethodPost, "/tags?name="+url.QueryEscape(t.Name), "", nil, &created); err != nil {
			return nil, fmt.Errorf("create custom vision tag %s: %w", t.Name, err)
		}
		ids[t.Name] = created.ID
		a.Logger.Info("custom_vision_tag_created", "tag", t.Name, "tag_id", created.ID)
	}
	return ids, nil
}

func (a *AzureCustomVision) uploadImage(ctx context.Context, asset types.Asset, data []byte) (string, error) {
	var summary cvImageSummary
	if err := a.call(ctx, http.MethodPost, "/images", "application/octet-stream", data, &summary); err != nil {
		return "", fmt.Errorf("upload %s: %w", asset.Name, err)
	}
	if len(summary.Images) == 0 || summary.Images[0].Image == nil {
		return "", fmt.Errorf("upload %s: service returned no image: %w", asset.Name, errdefs.ErrConnection)
	}
	img := summary.Images[0]
	if img.Status != "OK" && img.Status != "OKDuplicate" {
		return "", fmt.Errorf("upload %s: status %s: %w", asset.Name, img.Status, errdefs.ErrConnection)
	}
	return img.Image.ID, nil
}

func normalizedRegions(md types.AssetMetadata, data []byte, imageID string, tagIDs map[string]string) ([]cvRegion, error) {
	if len(md.Regions) == 0 {
		return nil, nil
	}
	width, height := 0, 0
	if md.Asset.Size != nil {
		width, height = md.Asset.Size.Width, md.Asset.Size.Height
	}
	if width <= 0 || height <= 0 {
		info, err := media.Probe(data)
		if err != nil {
			return nil, fmt.Errorf("probe asset %s: %w", md.Asset.Name, err)
		}
		width, height = info.Width, info.Height
	}
	w, h := float64(width), float64(height)

	var out []cvRegion
	for _, r := range md.Regions {
		b := r.Bounds()
		for _, tag := range r.Tags {
			tagID, ok := tagIDs[tag]
			if !ok {
				continue
			}
			out = append(out, cvRegion{
				ImageID: imageID,
				TagID:   tagID,
				Left:    b.Left / w,
				Top:     b.Top / h,
				Width:   b.Width / w,
				Height:  b.Height / h,
			})
		}
	}
	return out, nil
}

// call performs one training API request relative to the project URL and
// decodes the JSON response into out when out is non-nil
func (a *AzureCustomVision) call(ctx context.Context, method, rel, contentType string, body []byte, out any) error {
	u := fmt.Sprintf("%s/customvision/v3.0/training/projects/%s%s", a.endpoint, url.PathEscape(a.projectID), rel)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Training-Key", a.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s %s: %w", method, rel, errdefs.ErrNotFound)
		}
		return fmt.Errorf("%s %s returned status %d: %s: %w", method, rel, resp.StatusCode, strings.TrimSpace(string(msg)), errdefs.ErrConnection)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", rel, err)
	}
	return nil
}
