package project

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

func TestSaveAssignsID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), nil)

	in := &types.Project{Name: "Pet Photos", Tags: []types.Tag{{Name: "cat"}}}
	saved, err := s.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := uuid.Parse(saved.ID); err != nil {
		t.Errorf("Expected a uuid id, got %q", saved.ID)
	}
	if in.ID != "" {
		t.Error("Save must not modify its argument")
	}

	loaded, err := s.Load(ctx, "Pet Photos")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != saved.ID || len(loaded.Tags) != 1 {
		t.Errorf("Unexpected loaded project %+v", loaded)
	}
}

func TestSaveRejectsDuplicateTags(t *testing.T) {
	s := NewStore(storage.NewMemory(), nil)
	p := &types.Project{Name: "dup", Tags: []types.Tag{{Name: "cat"}, {Name: "cat"}}}
	if _, err := s.Save(context.Background(), p); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := NewStore(mem, nil)

	for _, name := range []string{"b", "a"} {
		if _, err := s.Save(ctx, &types.Project{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	_ = mem.WriteText(ctx, "a1-asset.json", "{}")

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List = %v", names)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, "a"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("{not json")); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestReconcileTags(t *testing.T) {
	p := &types.Project{Name: "p", Tags: []types.Tag{{Name: "cat", Color: "#fff"}}}
	md := []types.AssetMetadata{
		{Regions: []types.Region{{Tags: []string{"cat", "dog"}}}},
		{Regions: []types.Region{{Tags: []string{"bird", "dog"}}}},
	}

	added := ReconcileTags(p, md...)
	if len(added) != 2 || added[0] != "dog" || added[1] != "bird" {
		t.Errorf("added = %v", added)
	}
	if len(p.Tags) != 3 || p.Tags[0].Color != "#fff" || p.Tags[1].Color == "" {
		t.Errorf("Unexpected tags %+v", p.Tags)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Reconciled project should stay valid: %v", err)
	}
	if again := ReconcileTags(p, md...); len(again) != 0 {
		t.Errorf("Second reconcile should add nothing, got %v", again)
	}
}
