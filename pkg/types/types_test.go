package types

import (
	"errors"
	"testing"

	"github.com/menta2k/image-labeler/pkg/errdefs"
)

func TestRegionBoundsFromPoints(t *testing.T) {
	r := Region{
		ID:     "r1",
		Type:   RegionTypePolygon,
		Points: []Point{{X: 10, Y: 20}, {X: 50, Y: 5}, {X: 30, Y: 40}},
	}

	b := r.Bounds()
	if b.Left != 10 || b.Top != 5 || b.Width != 40 || b.Height != 35 {
		t.Errorf("Expected box {10 5 40 35}, got %+v", b)
	}
}

func TestRegionBoundsPrefersBox(t *testing.T) {
	r := Region{
		BoundingBox: BoundingBox{Left: 1, Top: 2, Width: 3, Height: 4},
		Points:      []Point{{X: 100, Y: 100}},
	}

	if b := r.Bounds(); b != r.BoundingBox {
		t.Errorf("Expected stored bounding box, got %+v", b)
	}
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"valid", BoundingBox{Left: 0, Top: 0, Width: 10, Height: 10}, false},
		{"negative left", BoundingBox{Left: -1, Top: 0, Width: 10, Height: 10}, true},
		{"zero width", BoundingBox{Left: 1, Top: 1, Width: 0, Height: 10}, true},
		{"zero height", BoundingBox{Left: 1, Top: 1, Width: 10, Height: 0}, true},
	}

	for _, tt := range tests {
		err := Region{ID: tt.name, BoundingBox: tt.box}.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errdefs.ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", tt.name, err)
		}
	}
}

func TestAssetMetadataCloneIsIndependent(t *testing.T) {
	md := AssetMetadata{
		Asset:   Asset{ID: "a", Name: "a.jpg", Size: &Size{Width: 10, Height: 20}},
		Regions: []Region{{ID: "r", Tags: []string{"cat"}, Points: []Point{{X: 1, Y: 1}}}},
	}

	clone := md.Clone()
	clone.Regions[0].Tags[0] = "dog"
	clone.Regions[0].Points[0].X = 99
	clone.Asset.Size.Width = 500

	if md.Regions[0].Tags[0] != "cat" {
		t.Error("Mutating clone tags changed the original")
	}
	if md.Regions[0].Points[0].X != 1 {
		t.Error("Mutating clone points changed the original")
	}
	if md.Asset.Size.Width != 10 {
		t.Error("Mutating clone size changed the original")
	}
}

func TestAssetValidateLineage(t *testing.T) {
	root := Asset{ID: "video", Name: "clip.mp4", Type: AssetTypeVideo}
	frame := Asset{ID: "frame", Name: "clip.mp4#t=1", Type: AssetTypeVideoFrame, Parent: &root}
	if err := frame.Validate(); err != nil {
		t.Errorf("Expected one-level child to be valid: %v", err)
	}

	nested := Asset{ID: "nested", Name: "n", Parent: &frame}
	if err := nested.Validate(); err == nil {
		t.Error("Expected error for two-level lineage")
	}

	self := Asset{ID: "self", Name: "s", Parent: &Asset{ID: "self", Name: "s"}}
	if err := self.Validate(); err == nil {
		t.Error("Expected error for self-parented asset")
	}
}

func TestProjectValidateDuplicateTags(t *testing.T) {
	p := &Project{Name: "demo", Tags: []Tag{{Name: "cat"}, {Name: "cat"}}}
	if err := p.Validate(); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for duplicate tags, got %v", err)
	}

	p.Tags[1].Name = "dog"
	if err := p.Validate(); err != nil {
		t.Errorf("Expected unique tags to validate, got %v", err)
	}
}

func TestTagNamesEncounterOrder(t *testing.T) {
	md := AssetMetadata{Regions: []Region{
		{Tags: []string{"b", "a"}},
		{Tags: []string{"a", "c"}},
	}}

	got := md.TagNames()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TagNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProviderOptionsAccessors(t *testing.T) {
	opts := ProviderOptions{
		"folderPath":    "  /data  ",
		"includeImages": "false",
		"count":         float64(35),
		"flag":          true,
	}

	if got := opts.String("folderPath"); got != "/data" {
		t.Errorf("String() = %q, want /data", got)
	}
	if opts.Bool("includeImages", true) {
		t.Error("Expected string \"false\" to parse as false")
	}
	if !opts.Bool("missing", true) {
		t.Error("Expected fallback for missing key")
	}
	if got := opts.Int("count", 0); got != 35 {
		t.Errorf("Int() = %d, want 35", got)
	}
	if err := opts.Require("folderPath", "apiKey"); err == nil {
		t.Error("Expected Require to report apiKey")
	}

	clone := opts.Clone()
	clone["folderPath"] = "/other"
	if opts.String("folderPath") != "/data" {
		t.Error("Mutating clone changed the original options")
	}
}
