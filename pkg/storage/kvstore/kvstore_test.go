package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFromOptionsRequiresDir(t *testing.T) {
	if _, err := FromOptions(types.ProviderOptions{}); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.WriteText(ctx, "demo.vott", `{"name":"demo"}`); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s = openStore(t, dir)
	got, err := s.ReadText(ctx, "demo.vott")
	if err != nil {
		t.Fatalf("ReadText after reopen: %v", err)
	}
	if got != `{"name":"demo"}` {
		t.Errorf("ReadText = %q", got)
	}
}

func TestReadMissing(t *testing.T) {
	s := openStore(t, "")
	if _, err := s.ReadText(context.Background(), "nope"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListing(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")

	_ = s.WriteText(ctx, "a-asset.json", "{}")
	_ = s.WriteText(ctx, "b-asset.json", "{}")
	_ = s.WriteText(ctx, "demo.vott", "{}")
	_ = s.WriteBinary(ctx, "export/cat.jpg", []byte{1})
	_ = s.WriteBinary(ctx, "export/deep/dog.jpg", []byte{2})
	_ = s.CreateContainer(ctx, "empty")

	files, err := s.ListFiles(ctx, "", "-asset.json")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0] != "a-asset.json" {
		t.Errorf("ListFiles = %v", files)
	}

	files, _ = s.ListFiles(ctx, "export", ".jpg")
	if len(files) != 1 || files[0] != "export/cat.jpg" {
		t.Errorf("ListFiles(export) = %v", files)
	}

	containers, _ := s.ListContainers(ctx, "")
	if len(containers) != 2 || containers[0] != "empty" || containers[1] != "export" {
		t.Errorf("ListContainers = %v", containers)
	}
}

func TestDeleteContainerAndFile(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")

	_ = s.WriteText(ctx, "export/a.csv", "a")
	_ = s.WriteText(ctx, "export/sub/b.csv", "b")
	_ = s.WriteText(ctx, "keep.txt", "k")

	if err := s.DeleteContainer(ctx, "export"); err != nil {
		t.Fatalf("DeleteContainer: %v", err)
	}
	if _, err := s.ReadText(ctx, "export/sub/b.csv"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Expected nested file removed, got %v", err)
	}
	if err := s.DeleteFile(ctx, "keep.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := s.DeleteFile(ctx, "keep.txt"); err != nil {
		t.Errorf("Deleting a missing file should succeed, got %v", err)
	}
}
