package export

import (
	"context"
	"errors"
	"testing"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

type fakeFetcher struct {
	blobs map[string][]byte
	calls []string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, a types.Asset) ([]byte, error) {
	f.calls = append(f.calls, a.ID)
	if f.err != nil {
		return nil, f.err
	}
	if data, ok := f.blobs[a.ID]; ok {
		return data, nil
	}
	return []byte("blob-" + a.Name), nil
}

type fakeMetadata map[string]types.AssetMetadata

func (m fakeMetadata) Get(_ context.Context, a types.Asset) (types.AssetMetadata, error) {
	if md, ok := m[a.ID]; ok {
		return md.Clone(), nil
	}
	return types.AssetMetadata{Asset: a, Regions: []types.Region{}}, nil
}

// failingStorage fails every binary write
type failingStorage struct {
	*storage.Memory
}

func (f failingStorage) WriteBinary(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func rect(left, top, width, height float64, tags ...string) types.Region {
	return types.Region{
		ID:          "r",
		Type:        types.RegionTypeRectangle,
		Tags:        tags,
		BoundingBox: types.BoundingBox{Left: left, Top: top, Width: width, Height: height},
	}
}

func asset(id, name string, state types.AssetState) types.Asset {
	return types.Asset{ID: id, Name: name, Path: "/data/" + name, Type: types.AssetTypeImage, State: state}
}

type fixture struct {
	project  *types.Project
	metadata fakeMetadata
	fetcher  *fakeFetcher
	storage  *storage.Memory
}

func newFixture(name string, mds ...types.AssetMetadata) *fixture {
	f := &fixture{
		project:  &types.Project{ID: "p1", Name: name, Tags: []types.Tag{{Name: "cat"}, {Name: "dog"}}},
		metadata: fakeMetadata{},
		fetcher:  &fakeFetcher{blobs: map[string][]byte{}},
		storage:  storage.NewMemory(),
	}
	for _, md := range mds {
		f.project.Assets = append(f.project.Assets, md.Asset)
		f.metadata[md.Asset.ID] = md
	}
	return f
}

func (f *fixture) request(opts types.ProviderOptions) Request {
	return Request{Project: f.project, Options: opts, Storage: f.storage, Metadata: f.metadata, Fetcher: f.fetcher}
}

func TestParseOptionsDefaults(t *testing.T) {
	o, err := ParseOptions(types.ProviderOptions{}, CSVFolder)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}
	if o.AssetState != AssetStateVisited || !o.IncludeImages || o.ExportFolder != CSVFolder {
		t.Errorf("Unexpected defaults %+v", o)
	}

	o, _ = ParseOptions(types.ProviderOptions{"assetState": "Tagged", "includeImages": "false", "exportFolder": "/out/"}, CSVFolder)
	if o.AssetState != AssetStateTagged || o.IncludeImages || o.ExportFolder != "out" {
		t.Errorf("Unexpected parsed options %+v", o)
	}

	if _, err := ParseOptions(types.ProviderOptions{"assetState": "some"}, ""); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewBaseRequiresProjectAndOptions(t *testing.T) {
	f := newFixture("demo")

	req := f.request(nil)
	if _, err := NewCSV(req); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil options, got %v", err)
	}

	req = f.request(types.ProviderOptions{})
	req.Project = nil
	if _, err := NewCSV(req); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil project, got %v", err)
	}

	req = f.request(types.ProviderOptions{})
	req.Storage = nil
	if _, err := NewJSON(req); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil storage, got %v", err)
	}
}

func TestAssetsForExportFilters(t *testing.T) {
	video := asset("v", "clip.mp4", types.AssetStateTagged)
	video.Type = types.AssetTypeVideo
	frame := asset("vf", "clip.mp4#t=1", types.AssetStateTagged)
	frame.Type = types.AssetTypeVideoFrame
	frame.Parent = &video

	f := newFixture("demo",
		types.AssetMetadata{Asset: asset("a", "a.jpg", types.AssetStateNotVisited)},
		types.AssetMetadata{Asset: asset("b", "b.jpg", types.AssetStateVisited)},
		types.AssetMetadata{Asset: asset("c", "c.jpg", types.AssetStateTagged)},
		types.AssetMetadata{Asset: video},
		types.AssetMetadata{Asset: frame},
	)

	tests := []struct {
		state string
		want  []string
	}{
		{"all", []string{"a", "b", "c", "vf"}},
		{"visited", []string{"b", "c", "vf"}},
		{"tagged", []string{"c", "vf"}},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			base, err := NewBase("test", f.request(types.ProviderOptions{"assetState": tt.state}), "")
			if err != nil {
				t.Fatal(err)
			}
			got, err := base.AssetsForExport(context.Background())
			if err != nil {
				t.Fatalf("AssetsForExport failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %d assets", tt.want, len(got))
			}
			for i, id := range tt.want {
				if got[i].Asset.ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].Asset.ID)
				}
			}
		})
	}
}

func TestBuiltinsRegister(t *testing.T) {
	r := NewRegistry()
	for _, reg := range Builtins() {
		if err := r.Register(reg); err != nil {
			t.Fatalf("Register(%s) failed: %v", reg.Name, err)
		}
	}
	for _, name := range []string{"csv", "vottJson", "tensorFlowRecords", "azureCustomVision"} {
		if !r.Has(name) {
			t.Errorf("Expected %s to be registered", name)
		}
	}

	f := newFixture("demo")
	p, err := r.Create("csv", f.request(types.ProviderOptions{}))
	if err != nil {
		t.Fatalf("Create(csv) failed: %v", err)
	}
	if _, ok := p.(*CSV); !ok {
		t.Errorf("Expected *CSV, got %T", p)
	}
}
