package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	imagelabeler "github.com/menta2k/image-labeler"
	"github.com/menta2k/image-labeler/internal/config"
	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/media"
)

// env carries what every command needs once the global flags are parsed
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	labeler *imagelabeler.Labeler
}

func main() {
	app := &cli.App{
		Name:    "image-labeler",
		Usage:   "Load, label and export image labeling projects",
		Version: imagelabeler.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the JSON configuration file",
				Value:   config.GetConfigPath(),
				EnvVars: []string{"IMAGE_LABELER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error (overrides the config file)",
				EnvVars: []string{"IMAGE_LABELER_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			providersCommand(),
			projectsCommand(),
			assetsCommand(),
			exportCommand(),
			previewCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration and builds the labeler. A missing config
// file at the default location falls back to defaults.
func setup(c *cli.Context) (*env, error) {
	cfg := config.Default()
	path := c.String("config")
	if utils.FileExists(path) {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if c.IsSet("config") {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.NewLogger(os.Stderr)
	fetcher := media.NewFetcher(media.WithTimeout(time.Duration(cfg.Media.HTTPTimeout)))
	labeler := imagelabeler.New(
		imagelabeler.WithLogger(logger),
		imagelabeler.WithFetcher(fetcher),
	)
	return &env{cfg: cfg, logger: logger, labeler: labeler}, nil
}
