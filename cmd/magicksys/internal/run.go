package internal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/goplus/magicksys/internal/build"
	"github.com/goplus/magicksys/internal/config"
	"github.com/goplus/magicksys/internal/directive"
	"github.com/goplus/magicksys/internal/execx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type mode int

const (
	modeAuto mode = iota
	modeProbe
	modeSource
)

func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// loadConfig layers command line flags over the environment and the config file.
func loadConfig() (*config.Config, error) {
	var f *config.File
	if configPath != "" {
		var err error
		if f, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(f)
	if err != nil {
		return nil, err
	}
	if forceStatic {
		cfg.ForceStatic = true
	}
	if cgoOut != "" {
		cfg.CgoOut = cgoOut
	}
	if cgoPackage != "" {
		cfg.CgoPackage = cgoPackage
	}
	if cfg.CgoOut != "" {
		if cfg.CgoOut, err = filepath.Abs(cfg.CgoOut); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(cmd *cobra.Command, m mode) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cmd.ErrOrStderr())
	em := directive.New(cmd.OutOrStdout())
	b := build.NewBuilder(cfg, execx.Exec{}, em, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var res *build.Result
	switch m {
	case modeProbe:
		res, err = b.Probe(ctx)
	case modeSource:
		res, err = b.BuildFromSource(ctx)
	default:
		res, err = b.Run(ctx)
	}
	if err != nil {
		return err
	}
	if err := em.Err(); err != nil {
		return fmt.Errorf("write directives: %w", err)
	}

	if cfg.CgoOut != "" {
		if err := b.WriteCgo(cfg.CgoOut); err != nil {
			return err
		}
		log.Info().Str("file", cfg.CgoOut).Msg("wrote cgo flags")
	}
	log.Debug().Bool("from_source", res.FromSource()).Int("directives", len(em.Directives())).Msg("done")
	return nil
}
