package assets

import (
	"testing"

	"github.com/menta2k/image-labeler/pkg/types"
)

func TestCreateFromPath(t *testing.T) {
	a := CreateFromPath("/data/images/Cat.JPG")

	if a.Name != "Cat.JPG" {
		t.Errorf("Name = %q, want Cat.JPG", a.Name)
	}
	if a.Format != "jpg" {
		t.Errorf("Format = %q, want jpg", a.Format)
	}
	if a.Type != types.AssetTypeImage {
		t.Errorf("Type = %q, want image", a.Type)
	}
	if a.State != types.AssetStateNotVisited {
		t.Errorf("State = %q, want notVisited", a.State)
	}
	if len(a.ID) != 32 {
		t.Errorf("Expected md5 hex id, got %q", a.ID)
	}

	again := CreateFromPath("/data/images/Cat.JPG")
	if again.ID != a.ID {
		t.Error("Expected the same path to produce the same id")
	}
	if other := CreateFromPath("/data/images/dog.jpg"); other.ID == a.ID {
		t.Error("Expected different paths to produce different ids")
	}
}

func TestCreateFromURL(t *testing.T) {
	a := CreateFromPath("https://account.blob.core.windows.net/photos/my%20cat.png?sv=2020&sig=abc")

	if a.Name != "my cat.png" {
		t.Errorf("Name = %q, want %q", a.Name, "my cat.png")
	}
	if a.Type != types.AssetTypeImage {
		t.Errorf("Type = %q, want image", a.Type)
	}
}

func TestTypeFromName(t *testing.T) {
	if TypeFromName("clip.mp4") != types.AssetTypeVideo {
		t.Error("Expected mp4 to be a video")
	}
	if TypeFromName("notes.txt") != types.AssetTypeUnknown {
		t.Error("Expected txt to be unknown")
	}
}

func TestMergeKeepsStateAndOrder(t *testing.T) {
	a := CreateFromPath("/d/a.jpg")
	a.State = types.AssetStateTagged
	b := CreateFromPath("/d/b.jpg")
	c := CreateFromPath("/d/c.jpg")

	fresh := CreateFromPath("/d/a.jpg")
	fresh.Size = &types.Size{Width: 640, Height: 480}

	merged := Merge([]types.Asset{a, b}, []types.Asset{c, fresh})

	if len(merged) != 3 {
		t.Fatalf("Expected 3 assets, got %d", len(merged))
	}
	if merged[0].ID != a.ID || merged[1].ID != b.ID || merged[2].ID != c.ID {
		t.Error("Expected existing assets first, then new ones in discovery order")
	}
	if merged[0].State != types.AssetStateTagged {
		t.Errorf("Expected existing state to be kept, got %q", merged[0].State)
	}
	if merged[0].Size == nil || merged[0].Size.Width != 640 {
		t.Error("Expected missing size to be filled from discovery")
	}
}
