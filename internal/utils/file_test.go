package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMediaDetection(t *testing.T) {
	tests := []struct {
		name  string
		image bool
		video bool
	}{
		{"cat.JPG", true, false},
		{"dog.webp", true, false},
		{"scan.tiff", true, false},
		{"clip.mp4", false, true},
		{"clip.MOV", false, true},
		{"notes.txt", false, false},
		{"noext", false, false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.image {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.name, got, tt.image)
		}
		if got := IsVideoFile(tt.name); got != tt.video {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tt.name, got, tt.video)
		}
	}
}

func TestListMediaFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "readme.md", "clip.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListMediaFiles(dir)
	if err != nil {
		t.Fatalf("ListMediaFiles failed: %v", err)
	}

	want := []string{"a.jpg", "b.png", "clip.mp4"}
	if len(files) != len(want) {
		t.Fatalf("Expected %d files, got %v", len(want), files)
	}
	for i, w := range want {
		if filepath.Base(files[i]) != w {
			t.Errorf("files[%d] = %s, want %s", i, filepath.Base(files[i]), w)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" my:project?. "); got != "my_project_" {
		t.Errorf("SanitizeFilename = %q", got)
	}
}

func TestHyphenateSpaces(t *testing.T) {
	if got := HyphenateSpaces("My Labeling Project"); got != "My-Labeling-Project" {
		t.Errorf("HyphenateSpaces = %q", got)
	}
}

func TestTrimExtension(t *testing.T) {
	if got := TrimExtension("frame.0001.jpg"); got != "frame.0001" {
		t.Errorf("TrimExtension = %q", got)
	}
}
