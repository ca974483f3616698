package azureblob

import (
	"errors"
	"testing"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

func TestOptionsFromProvider(t *testing.T) {
	opts, err := OptionsFromProvider(types.ProviderOptions{
		"accountName":     "labels",
		"containerName":   "photos",
		"sas":             "?sv=2020&sig=abc",
		"createContainer": true,
	})
	if err != nil {
		t.Fatalf("OptionsFromProvider failed: %v", err)
	}
	if opts.SAS != "sv=2020&sig=abc" {
		t.Errorf("Expected leading ? to be stripped from SAS, got %q", opts.SAS)
	}
	if !opts.CreateContainer {
		t.Error("Expected CreateContainer to be true")
	}
}

func TestOptionsFromProviderMissing(t *testing.T) {
	_, err := OptionsFromProvider(types.ProviderOptions{"accountName": "labels"})
	if !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if _, err := New(Options{}); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument from New, got %v", err)
	}
}

func TestBlobURL(t *testing.T) {
	b, err := New(Options{AccountName: "labels", ContainerName: "photos", SAS: "sv=1&sig=x"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := b.BlobURL("photos", "set 1/cat.jpg")
	want := "https://labels.blob.core.windows.net/photos/set%201/cat.jpg?sv=1&sig=x"
	if got != want {
		t.Errorf("BlobURL = %q, want %q", got, want)
	}
}

func TestServiceURLOverride(t *testing.T) {
	opts := Options{AccountName: "devstoreaccount1", ContainerName: "c", ServiceURL: "http://127.0.0.1:10000/devstoreaccount1/"}
	if got := serviceURLWithSAS(opts); got != "http://127.0.0.1:10000/devstoreaccount1/" {
		t.Errorf("serviceURLWithSAS = %q", got)
	}
}

func TestDirPrefix(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"vott-csv-export":  "vott-csv-export/",
		"/a/b/":            "a/b/",
	}
	for in, want := range tests {
		if got := dirPrefix(in); got != want {
			t.Errorf("dirPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapErrConnection(t *testing.T) {
	err := mapErr("read", "x", errors.New("dial tcp: no such host"))
	if !errors.Is(err, errdefs.ErrConnection) {
		t.Errorf("Expected ErrConnection for transport failure, got %v", err)
	}
}
