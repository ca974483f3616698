// Package project saves and loads project files (.vott) through a storage
// provider and keeps project tags in step with region labels.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// FileExtension is the extension of saved project files
const FileExtension = ".vott"

// Store persists projects in a storage provider
type Store struct {
	storage storage.Provider
	logger  *slog.Logger
}

// NewStore creates a project store over p
func NewStore(p storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: p, logger: logger}
}

// FileName returns the storage path of a project named name
func FileName(name string) string {
	return name + FileExtension
}

// Save validates and writes the project, assigning an id when it has none.
// The returned project is a copy of what was written.
func (s *Store) Save(ctx context.Context, p *types.Project) (*types.Project, error) {
	if p == nil {
		return nil, fmt.Errorf("project is nil: %w", errdefs.ErrInvalidArgument)
	}
	out := p.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode project %s: %w", out.Name, err)
	}
	if err := s.storage.WriteText(ctx, FileName(out.Name), string(data)); err != nil {
		return nil, fmt.Errorf("save project %s: %w", out.Name, err)
	}
	s.logger.Info("project_saved", "project_id", out.ID, "name", out.Name, "assets", len(out.Assets))
	return out.Clone(), nil
}

// Load reads the project named name
func (s *Store) Load(ctx context.Context, name string) (*types.Project, error) {
	text, err := s.storage.ReadText(ctx, FileName(name))
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", name, err)
	}
	return Decode([]byte(text))
}

// Decode parses and validates a project file
func Decode(data []byte) (*types.Project, error) {
	var p types.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project: %w: %v", errdefs.ErrInvalidArgument, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the names of all saved projects
func (s *Store) List(ctx context.Context) ([]string, error) {
	files, err := s.storage.ListFiles(ctx, "", FileExtension)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(path.Base(f), FileExtension))
	}
	return names, nil
}

// Delete removes the project file named name
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.storage.DeleteFile(ctx, FileName(name)); err != nil {
		return fmt.Errorf("delete project %s: %w", name, err)
	}
	s.logger.Info("project_deleted", "name", name)
	return nil
}

// ReconcileTags appends to p every tag referenced by a region but missing
// from the project, in encounter order. It returns the names it added.
func ReconcileTags(p *types.Project, metadata ...types.AssetMetadata) []string {
	var added []string
	for _, md := range metadata {
		for _, name := range md.TagNames() {
			if name == "" || p.TagIndex(name) >= 0 {
				continue
			}
			p.Tags = append(p.Tags, types.Tag{Name: name, Color: DefaultTagColor(len(p.Tags))})
			added = append(added, name)
		}
	}
	return added
}

var tagColors = []string{
	"#5db300", "#e81123", "#6917aa", "#015cda", "#4894fe",
	"#6b0a8f", "#b4009e", "#ff8c00", "#00b294", "#f1c40f",
}

// DefaultTagColor picks a color for the i-th tag
func DefaultTagColor(i int) string {
	return tagColors[i%len(tagColors)]
}
