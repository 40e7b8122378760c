package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"gitlab.com/tozd/mwarchive/internal/orchestrator"
)

func main() {
	var config Config

	parser, err := kong.New(&config,
		kong.Description("Archive a MediaWiki-powered wiki for offline reading."),
		kong.UsageOnError(),
	)
	if err != nil {
		panic(err)
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger := newLogger(config.Verbose)

	cfg := orchestrator.Config{
		APIURL:             config.APIURL,
		RESTURL:            config.RESTURL,
		VEURL:              config.VEURL,
		Speed:              config.Speed,
		RequestTimeout:     config.RequestTimeout,
		ScratchDir:         config.ScratchDir,
		SkipCacheCleaning:  config.SkipCacheCleaning,
		BlobCacheURL:       config.BlobCacheURL,
		ArticleListPath:    config.ArticleList,
		OutputDir:          config.Output,
		FormatToken:        strings.TrimSpace(config.Format),
		AllowLocalFallback: config.AllowLocalFallback,
		LocalParsoidCmd:    config.LocalParsoidCmd,
		LocalMCSCmd:        config.LocalMCSCmd,
		LocalParsoidAddr:   config.LocalParsoidAddr,
		LocalMCSAddr:       config.LocalMCSAddr,
		Creator:            config.Creator,
		IndexURL:           config.IndexURL,
		IndexName:          config.IndexName,
		Logger:             logger,
	}

	o := orchestrator.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if errE := o.Run(ctx); errE != nil {
		logger.Error().Err(errE).Msg("run failed")
		kongCtx.Exit(1)
		return
	}
}

// newLogger builds a console-writer logger in the style used throughout the
// archiving pipeline's internal packages, which all accept a zerolog.Logger
// rather than constructing their own.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
