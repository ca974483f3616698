package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

type fakeProvider struct {
	source  string
	options types.ProviderOptions
}

func newTestRegistry() *Registry[types.ProviderOptions, *fakeProvider] {
	return New[types.ProviderOptions, *fakeProvider]("test")
}

func TestCreateInvokesFactoryOnceWithOptions(t *testing.T) {
	r := newTestRegistry()
	calls := 0
	var received types.ProviderOptions

	err := r.Register(Registration[types.ProviderOptions, *fakeProvider]{
		Name:        "local",
		DisplayName: "Local",
		Factory: func(opts types.ProviderOptions) (*fakeProvider, error) {
			calls++
			received = opts
			return &fakeProvider{source: "local", options: opts}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	opts := types.ProviderOptions{"folderPath": "/data"}
	p, err := r.Create("local", opts)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected factory to be called once, got %d", calls)
	}
	if received.String("folderPath") != "/data" {
		t.Errorf("Expected factory to receive options, got %v", received)
	}
	if p.source != "local" {
		t.Errorf("Expected provider from local factory, got %q", p.source)
	}
}

func TestCreateUnregisteredName(t *testing.T) {
	r := newTestRegistry()
	_ = r.RegisterFactory("registered", func(types.ProviderOptions) (*fakeProvider, error) {
		return &fakeProvider{}, nil
	})

	for _, name := range []string{"missing", "Registered", "registered ", "azure"} {
		_, err := r.Create(name, nil)
		if !errors.Is(err, errdefs.ErrNotFound) {
			t.Errorf("Create(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestRegisterOverwrites(t *testing.T) {
	r := newTestRegistry()
	_ = r.RegisterFactory("p", func(types.ProviderOptions) (*fakeProvider, error) {
		return &fakeProvider{source: "first"}, nil
	})
	_ = r.RegisterFactory("p", func(types.ProviderOptions) (*fakeProvider, error) {
		return &fakeProvider{source: "second"}, nil
	})

	p, err := r.Create("p", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.source != "second" {
		t.Errorf("Expected last registration to win, got %q", p.source)
	}
	if n := len(r.Providers()); n != 1 {
		t.Errorf("Expected 1 registration, got %d", n)
	}
}

func TestProvidersSnapshotIsolation(t *testing.T) {
	r := newTestRegistry()
	_ = r.RegisterFactory("p", func(types.ProviderOptions) (*fakeProvider, error) {
		return &fakeProvider{source: "original"}, nil
	})

	snapshot := r.Providers()
	delete(snapshot, "p")
	snapshot["injected"] = Registration[types.ProviderOptions, *fakeProvider]{
		Name: "injected",
		Factory: func(types.ProviderOptions) (*fakeProvider, error) {
			return &fakeProvider{source: "injected"}, nil
		},
	}

	p, err := r.Create("p", nil)
	if err != nil {
		t.Fatalf("Create after snapshot mutation failed: %v", err)
	}
	if p.source != "original" {
		t.Errorf("Expected original provider, got %q", p.source)
	}
	if _, err := r.Create("injected", nil); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Expected injected name to stay unregistered, got %v", err)
	}
}

func TestRegisterInvalidArguments(t *testing.T) {
	r := newTestRegistry()

	if err := r.Register(Registration[types.ProviderOptions, *fakeProvider]{Name: ""}); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for empty name, got %v", err)
	}
	if err := r.RegisterFactory("p", nil); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil factory, got %v", err)
	}
	if _, err := r.Create("", nil); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for empty create name, got %v", err)
	}
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	r := newTestRegistry()
	_ = r.RegisterFactory("bing", func(types.ProviderOptions) (*fakeProvider, error) { return nil, nil })

	reg := r.Providers()["bing"]
	if reg.DisplayName != "bing" {
		t.Errorf("Expected display name to default to name, got %q", reg.DisplayName)
	}
}

func TestFactoryErrorPropagates(t *testing.T) {
	r := newTestRegistry()
	boom := fmt.Errorf("bad options: %w", errdefs.ErrInvalidArgument)
	_ = r.RegisterFactory("p", func(types.ProviderOptions) (*fakeProvider, error) {
		return nil, boom
	})

	_, err := r.Create("p", nil)
	if !errors.Is(err, boom) {
		t.Errorf("Expected factory error to propagate, got %v", err)
	}
}

func TestFromConnection(t *testing.T) {
	r := newTestRegistry()
	_ = r.RegisterFactory("localFileSystemProxy", func(opts types.ProviderOptions) (*fakeProvider, error) {
		return &fakeProvider{source: opts.String("folderPath")}, nil
	})

	conn := &types.Connection{
		Name:            "photos",
		ProviderType:    "localFileSystemProxy",
		ProviderOptions: types.ProviderOptions{"folderPath": "/photos"},
	}
	p, err := FromConnection(r, conn)
	if err != nil {
		t.Fatalf("FromConnection failed: %v", err)
	}
	if p.source != "/photos" {
		t.Errorf("Expected provider built from connection options, got %q", p.source)
	}

	if _, err := FromConnection(r, nil); !errors.Is(err, errdefs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil connection, got %v", err)
	}
}

func TestNamesSorted(t *testing.T) {
	r := newTestRegistry()
	for _, n := range []string{"vottJson", "csv", "tensorFlowRecords"} {
		_ = r.RegisterFactory(n, func(types.ProviderOptions) (*fakeProvider, error) { return nil, nil })
	}

	names := r.Names()
	want := []string{"csv", "tensorFlowRecords", "vottJson"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if !r.Has("csv") || r.Has("pascalVOC") {
		t.Error("Has() returned unexpected result")
	}
}
