package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	imagelabeler "github.com/menta2k/image-labeler"
	"github.com/menta2k/image-labeler/internal/config"
	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/project"
	"github.com/menta2k/image-labeler/pkg/registry"
	"github.com/menta2k/image-labeler/pkg/storage/local"
	"github.com/menta2k/image-labeler/pkg/types"
)

func projectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Aliases: []string{"p"},
			Usage:   "Path to a .vott project file",
		},
		&cli.StringFlag{
			Name:  "connection",
			Usage: "Named connection from the config file holding the project",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Project name inside --connection",
		},
	}
}

// projectHandle is a loaded project and the store it came from
type projectHandle struct {
	project *types.Project
	store   *project.Store
	backend any
	labeler *imagelabeler.Labeler
}

func (h *projectHandle) save(ctx context.Context) error {
	saved, err := h.store.Save(ctx, h.project)
	if err != nil {
		return err
	}
	h.project = saved
	return nil
}

func (h *projectHandle) close() { h.labeler.Close(h.backend) }

func openProject(c *cli.Context, e *env) (*projectHandle, error) {
	ctx := c.Context
	var (
		conn types.Connection
		name string
	)

	switch path := c.String("project"); {
	case path != "":
		if filepath.Ext(path) != project.FileExtension {
			return nil, fmt.Errorf("project file %s must have the %s extension", path, project.FileExtension)
		}
		conn = types.Connection{
			ProviderType:    local.ProviderName,
			ProviderOptions: types.ProviderOptions{"folderPath": filepath.Dir(path)},
		}
		name = utils.TrimExtension(filepath.Base(path))
	case c.String("connection") != "" && c.String("name") != "":
		var err error
		if conn, err = e.cfg.Connection(c.String("connection")); err != nil {
			return nil, err
		}
		name = c.String("name")
	default:
		return nil, fmt.Errorf("either --project or --connection with --name is required")
	}

	backend, err := e.labeler.StorageFor(ctx, &conn)
	if err != nil {
		return nil, err
	}
	store := project.NewStore(backend, e.logger)
	p, err := store.Load(ctx, name)
	if err != nil {
		e.labeler.Close(backend)
		return nil, err
	}
	return &projectHandle{project: p, store: store, backend: backend, labeler: e.labeler}, nil
}

func providersCommand() *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List the registered storage, asset and export providers",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			printRegistry(w, e.labeler.StorageProviders())
			printRegistry(w, e.labeler.AssetProviders())
			printRegistry(w, e.labeler.ExportProviders())
			return w.Flush()
		},
	}
}

func printRegistry[A, T any](w *tabwriter.Writer, r *registry.Registry[A, T]) {
	fmt.Fprintf(w, "%s providers:\n", r.Kind())
	providers := r.Providers()
	for _, name := range r.Names() {
		reg := providers[name]
		fmt.Fprintf(w, "  %s\t%s\t%s\n", name, reg.DisplayName, reg.Description)
	}
	fmt.Fprintln(w)
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "List the projects saved in a configured connection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "connection", Usage: "Named connection from the config file", Required: true},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			conn, err := e.cfg.Connection(c.String("connection"))
			if err != nil {
				return err
			}
			backend, err := e.labeler.StorageFor(c.Context, &conn)
			if err != nil {
				return err
			}
			defer e.labeler.Close(backend)

			names, err := project.NewStore(backend, e.logger).List(c.Context)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func assetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "assets",
		Usage: "Load the assets of a project's source connection",
		Flags: append(projectFlags(),
			&cli.BoolFlag{Name: "save", Usage: "Write the merged asset list back to the project"},
		),
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			h, err := openProject(c, e)
			if err != nil {
				return err
			}
			defer h.close()

			loaded, err := e.labeler.LoadAssets(c.Context, h.project)
			if err != nil {
				return err
			}
			loaded = supportedAssets(loaded, e.cfg.Media.SupportedFormats)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATE")
			for _, a := range loaded {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Type, a.State)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !c.Bool("save") {
				return nil
			}
			h.project.Assets = loaded
			return h.save(c.Context)
		},
	}
}

// supportedAssets drops images whose format is not in formats. Videos and
// assets without a format pass through.
func supportedAssets(in []types.Asset, formats []string) []types.Asset {
	out := in[:0]
	for _, a := range in {
		if a.Type == types.AssetTypeImage && a.Format != "" && !slices.Contains(formats, strings.ToLower(a.Format)) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a project with its configured or the given format",
		Flags: append(projectFlags(),
			&cli.StringFlag{Name: "format", Usage: "Export provider: csv, vottJson, tensorFlowRecords, azureCustomVision"},
			&cli.StringFlag{Name: "asset-state", Usage: "Assets to export: all, visited, tagged"},
			&cli.BoolFlag{Name: "include-images", Usage: "Copy asset images next to the export"},
			&cli.StringFlag{Name: "folder", Usage: "Export folder inside the target connection"},
			&cli.StringSliceFlag{Name: "option", Aliases: []string{"o"}, Usage: "Provider option as key=value (repeatable)"},
		),
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			h, err := openProject(c, e)
			if err != nil {
				return err
			}
			defer h.close()

			format, err := exportFormat(c, e.cfg, h.project.ExportFormat)
			if err != nil {
				return err
			}
			h.project.ExportFormat = format
			if format.ProviderType == "" {
				return fmt.Errorf("project %s has no export format, pass --format", h.project.Name)
			}
			return e.labeler.ExportProject(c.Context, h.project)
		},
	}
}

// exportFormat merges the project's export settings, the command flags and
// the config defaults, in that order of increasing precedence for flags
func exportFormat(c *cli.Context, cfg *config.Config, current *types.ExportFormat) (*types.ExportFormat, error) {
	out := &types.ExportFormat{ProviderOptions: types.ProviderOptions{}}
	if current != nil {
		out.ProviderType = current.ProviderType
		out.ProviderOptions = current.ProviderOptions.Clone()
		if out.ProviderOptions == nil {
			out.ProviderOptions = types.ProviderOptions{}
		}
	}
	if _, ok := out.ProviderOptions["assetState"]; !ok {
		out.ProviderOptions["assetState"] = cfg.Export.AssetState
	}
	if _, ok := out.ProviderOptions["includeImages"]; !ok {
		out.ProviderOptions["includeImages"] = cfg.Export.IncludeImages
	}

	if c.IsSet("format") {
		out.ProviderType = c.String("format")
	}
	if c.IsSet("asset-state") {
		out.ProviderOptions["assetState"] = c.String("asset-state")
	}
	if c.IsSet("include-images") {
		out.ProviderOptions["includeImages"] = c.Bool("include-images")
	}
	if c.IsSet("folder") {
		out.ProviderOptions["exportFolder"] = c.String("folder")
	}
	for _, kv := range c.StringSlice("option") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --option %q, expected key=value", kv)
		}
		out.ProviderOptions[key] = value
	}
	return out, nil
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Render an asset's labeled regions over its image",
		Flags: append(projectFlags(),
			&cli.StringFlag{Name: "asset", Usage: "Asset id or name", Required: true},
			&cli.StringFlag{Name: "out", Usage: "Output image path", Required: true},
			&cli.StringFlag{Name: "format", Usage: "Output format: png, jpg, webp (default from config)"},
			&cli.IntFlag{Name: "quality", Usage: "JPEG/WebP quality (default from config)"},
			&cli.IntFlag{Name: "max-size", Usage: "Longest side in pixels, 0 keeps the original (default from config)"},
		),
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			h, err := openProject(c, e)
			if err != nil {
				return err
			}
			defer h.close()

			asset, ok := findAsset(h.project, c.String("asset"))
			if !ok {
				return fmt.Errorf("asset %q is not part of project %s", c.String("asset"), h.project.Name)
			}

			opts := imagelabeler.PreviewOptions{
				Format:  e.cfg.Preview.Format,
				Quality: e.cfg.Preview.Quality,
				MaxSize: e.cfg.Preview.MaxSize,
			}
			if c.IsSet("format") {
				opts.Format = c.String("format")
			}
			if c.IsSet("quality") {
				opts.Quality = c.Int("quality")
			}
			if c.IsSet("max-size") {
				opts.MaxSize = c.Int("max-size")
			}
			out := c.String("out")
			if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
				return err
			}
			return e.labeler.RenderPreview(c.Context, h.project, asset, out, opts)
		},
	}
}

func findAsset(p *types.Project, key string) (types.Asset, bool) {
	if a, ok := p.Asset(key); ok {
		return a, true
	}
	for _, a := range p.Assets {
		if a.Name == key {
			return a, true
		}
	}
	return types.Asset{}, false
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a default configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if utils.FileExists(path) && !c.Bool("force") {
						return fmt.Errorf("config file %s already exists, use --force to overwrite", path)
					}
					if err := config.Default().SaveToFile(path); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					e, err := setup(c)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(e.cfg)
				},
			},
		},
	}
}
