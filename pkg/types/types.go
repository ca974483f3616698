package types

import (
	"fmt"
	"math"

	"github.com/menta2k/image-labeler/pkg/errdefs"
)

// AssetType classifies an asset by the kind of media it points at
type AssetType string

const (
	AssetTypeUnknown    AssetType = "unknown"
	AssetTypeImage      AssetType = "image"
	AssetTypeVideo      AssetType = "video"
	AssetTypeVideoFrame AssetType = "videoFrame"
)

// AssetState tracks how far labeling has progressed on an asset
type AssetState string

const (
	AssetStateNotVisited AssetState = "notVisited"
	AssetStateVisited    AssetState = "visited"
	AssetStateTagged     AssetState = "tagged"
)

// RegionType is the geometry kind drawn on the canvas
type RegionType string

const (
	RegionTypeRectangle RegionType = "RECTANGLE"
	RegionTypePolygon   RegionType = "POLYGON"
	RegionTypePolyline  RegionType = "POLYLINE"
	RegionTypePoint     RegionType = "POINT"
)

// Size is an asset's pixel dimensions
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a canvas coordinate in pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned box in pixel coordinates
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the box's right edge
func (b BoundingBox) Right() float64 { return b.Left + b.Width }

// Bottom returns the y coordinate of the box's bottom edge
func (b BoundingBox) Bottom() float64 { return b.Top + b.Height }

// IsEmpty reports whether the box has no area
func (b BoundingBox) IsEmpty() bool { return b.Width <= 0 || b.Height <= 0 }

// Tag is a project-level label category
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Asset is a single image, video or derived video frame
type Asset struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Type      AssetType  `json:"type"`
	Format    string     `json:"format,omitempty"`
	State     AssetState `json:"state"`
	Size      *Size      `json:"size,omitempty"`
	Parent    *Asset     `json:"parent,omitempty"`
	Timestamp float64    `json:"timestamp,omitempty"`
}

// IsRoot reports whether the asset has no parent
func (a Asset) IsRoot() bool { return a.Parent == nil }

// Clone returns a deep copy of the asset
func (a Asset) Clone() Asset {
	out := a
	if a.Size != nil {
		size := *a.Size
		out.Size = &size
	}
	if a.Parent != nil {
		parent := a.Parent.Clone()
		out.Parent = &parent
	}
	return out
}

// Validate checks identity fields and the single-level parent lineage
func (a Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset id is empty: %w", errdefs.ErrInvalidArgument)
	}
	if a.Name == "" {
		return fmt.Errorf("asset %s has no name: %w", a.ID, errdefs.ErrInvalidArgument)
	}
	if a.Parent != nil {
		if a.Parent.Parent != nil {
			return fmt.Errorf("asset %s: parent %s is itself a child: %w", a.ID, a.Parent.ID, errdefs.ErrInvalidArgument)
		}
		if a.Parent.ID == a.ID {
			return fmt.Errorf("asset %s is its own parent: %w", a.ID, errdefs.ErrInvalidArgument)
		}
	}
	return nil
}

// Region is a geometric annotation carrying one or more tag names
type Region struct {
	ID          string      `json:"id"`
	Type        RegionType  `json:"type"`
	Tags        []string    `json:"tags"`
	Points      []Point     `json:"points,omitempty"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// Bounds returns the bounding box, deriving it from the points when unset
func (r Region) Bounds() BoundingBox {
	if !r.BoundingBox.IsEmpty() || len(r.Points) == 0 {
		return r.BoundingBox
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range r.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return BoundingBox{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
}

// Validate checks the region geometry
func (r Region) Validate() error {
	b := r.Bounds()
	if b.Left < 0 || b.Top < 0 {
		return fmt.Errorf("region %s: negative coordinates (%.1f, %.1f): %w", r.ID, b.Left, b.Top, errdefs.ErrInvalidArgument)
	}
	if b.IsEmpty() {
		return fmt.Errorf("region %s: empty box %.1fx%.1f: %w", r.ID, b.Width, b.Height, errdefs.ErrInvalidArgument)
	}
	return nil
}

// Clone returns a deep copy of the region
func (r Region) Clone() Region {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Points = append([]Point(nil), r.Points...)
	return out
}

// AssetMetadata is one asset together with its labeled regions
type AssetMetadata struct {
	Asset   Asset    `json:"asset"`
	Regions []Region `json:"regions"`
	Version string   `json:"version,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state
func (m AssetMetadata) Clone() AssetMetadata {
	out := AssetMetadata{Asset: m.Asset.Clone(), Version: m.Version, Regions: make([]Region, len(m.Regions))}
	for i, r := range m.Regions {
		out.Regions[i] = r.Clone()
	}
	return out
}

// TagNames returns each distinct tag referenced by the regions, in encounter order
func (m AssetMetadata) TagNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range m.Regions {
		for _, t := range r.Tags {
			if !seen[t] {
				seen[t] = true
				names = append(names, t)
			}
		}
	}
	return names
}

// Connection points at a storage or asset backend
type Connection struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ProviderType    string          `json:"providerType"`
	ProviderOptions ProviderOptions `json:"providerOptions"`
}

// ExportFormat selects an export provider and its options
type ExportFormat struct {
	ProviderType    string          `json:"providerType"`
	ProviderOptions ProviderOptions `json:"providerOptions"`
}

// Project is a named collection of assets, tags and connection settings
type Project struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	Version          string        `json:"version,omitempty"`
	Tags             []Tag         `json:"tags"`
	Assets           []Asset       `json:"assets"`
	ExportFormat     *ExportFormat `json:"exportFormat,omitempty"`
	SourceConnection *Connection   `json:"sourceConnection,omitempty"`
	TargetConnection *Connection   `json:"targetConnection,omitempty"`
}

// Asset returns the asset with the given id
func (p *Project) Asset(id string) (Asset, bool) {
	for _, a := range p.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// Tag returns the project tag with the given name
func (p *Project) Tag(name string) (Tag, bool) {
	for _, t := range p.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// TagIndex returns the position of the named tag, or -1
func (p *Project) TagIndex(name string) int {
	for i, t := range p.Tags {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the project-level invariants
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is empty: %w", errdefs.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(p.Tags))
	for _, t := range p.Tags {
		if t.Name == "" {
			return fmt.Errorf("project %s: tag with empty name: %w", p.Name, errdefs.ErrInvalidArgument)
		}
		if seen[t.Name] {
			return fmt.Errorf("project %s: duplicate tag %q: %w", p.Name, t.Name, errdefs.ErrInvalidArgument)
		}
		seen[t.Name] = true
	}
	for _, a := range p.Assets {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("project %s: %w", p.Name, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the project
func (p *Project) Clone() *Project {
	out := *p
	out.Tags = append([]Tag(nil), p.Tags...)
	out.Assets = make([]Asset, len(p.Assets))
	for i, a := range p.Assets {
		out.Assets[i] = a.Clone()
	}
	if p.ExportFormat != nil {
		ef := ExportFormat{ProviderType: p.ExportFormat.ProviderType, ProviderOptions: p.ExportFormat.ProviderOptions.Clone()}
		out.ExportFormat = &ef
	}
	if p.SourceConnection != nil {
		c := p.SourceConnection.Clone()
		out.SourceConnection = &c
	}
	if p.TargetConnection != nil {
		c := p.TargetConnection.Clone()
		out.TargetConnection = &c
	}
	return &out
}

// Clone returns a copy of the connection with its own options map
func (c Connection) Clone() Connection {
	out := c
	out.ProviderOptions = c.ProviderOptions.Clone()
	return out
}
