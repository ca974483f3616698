package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

func newFS(t *testing.T) *FileSystem {
	t.Helper()
	fsys, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return fsys
}

func TestNewRequiresFolder(t *testing.T) {
	if _, err := FromOptions(types.ProviderOptions{}); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestWriteAndReadNested(t *testing.T) {
	ctx := context.Background()
	fsys := newFS(t)

	if err := fsys.WriteBinary(ctx, "vott-csv-export/cat.jpg", []byte{0xff, 0xd8}); err != nil {
		t.Fatalf("WriteBinary failed: %v", err)
	}
	if err := fsys.WriteText(ctx, "vott-csv-export/demo-export.csv", "line"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}

	data, err := fsys.ReadBinary(ctx, "vott-csv-export/cat.jpg")
	if err != nil {
		t.Fatalf("ReadBinary failed: %v", err)
	}
	if len(data) != 2 || data[0] != 0xff {
		t.Errorf("Unexpected data %v", data)
	}

	files, err := fsys.ListFiles(ctx, "vott-csv-export", ".csv")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 || files[0] != "vott-csv-export/demo-export.csv" {
		t.Errorf("ListFiles = %v", files)
	}

	containers, err := fsys.ListContainers(ctx, "")
	if err != nil {
		t.Fatalf("ListContainers failed: %v", err)
	}
	if len(containers) != 1 || containers[0] != "vott-csv-export" {
		t.Errorf("ListContainers = %v", containers)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	fsys := newFS(t)
	if _, err := fsys.ReadText(context.Background(), "nope.json"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPathsCannotEscapeRoot(t *testing.T) {
	ctx := context.Background()
	fsys := newFS(t)

	if err := fsys.WriteText(ctx, "../../escape.txt", "x"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fsys.Root(), "escape.txt")); err != nil {
		t.Errorf("Expected file to land inside root: %v", err)
	}
}

func TestDeleteContainerRefusesRoot(t *testing.T) {
	fsys := newFS(t)
	if err := fsys.DeleteContainer(context.Background(), ""); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument deleting root, got %v", err)
	}
}

func TestGetAssets(t *testing.T) {
	fsys := newFS(t)
	for _, name := range []string{"b.png", "a.jpg", "notes.txt", "clip.mp4"} {
		if err := os.WriteFile(filepath.Join(fsys.Root(), name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	list, err := fsys.GetAssets(context.Background(), "")
	if err != nil {
		t.Fatalf("GetAssets failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 assets, got %d", len(list))
	}
	if list[0].Name != "a.jpg" || list[2].Type != types.AssetTypeVideo {
		t.Errorf("Unexpected assets %+v", list)
	}

	if _, err := fsys.GetAssets(context.Background(), "missing"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing container, got %v", err)
	}
}

func TestInitializeCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "new", "target")
	fsys, _ := New(root)
	if err := fsys.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("Expected root folder to exist: %v", err)
	}
}
