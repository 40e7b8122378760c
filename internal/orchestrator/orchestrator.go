// Package orchestrator is the Scrape Orchestrator: it drives the
// nine sequential phases that turn a wiki into an archive, wiring
// together the Wiki Client, Downloader, Renderer, DOM Rewriter and
// Archive Writer. Each phase drains fully before the next begins.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
	"gitlab.com/tozd/mwarchive/internal/cache"
	"gitlab.com/tozd/mwarchive/internal/downloader"
	"gitlab.com/tozd/mwarchive/internal/index"
	"gitlab.com/tozd/mwarchive/internal/kvstore"
	"gitlab.com/tozd/mwarchive/internal/model"
	"gitlab.com/tozd/mwarchive/internal/rewriter"
	"gitlab.com/tozd/mwarchive/internal/runid"
	"gitlab.com/tozd/mwarchive/internal/wikiclient"
)

// robotsUserAgent is the identifier matched against robots.txt groups when
// seeding the Downloader's initial concurrency ceiling.
const robotsUserAgent = "mwarchive"

// Config configures one scrape run.
type Config struct {
	APIURL             string
	RESTURL            string
	VEURL              string
	Speed              int
	RequestTimeout     int // seconds
	ScratchDir         string
	SkipCacheCleaning  bool
	BlobCacheURL       string
	ArticleListPath    string
	OutputDir          string
	FormatToken        string
	AllowLocalFallback bool
	LocalParsoidCmd    []string
	LocalMCSCmd        []string
	LocalParsoidAddr   string
	LocalMCSAddr       string
	Creator            string

	// IndexURL, when set, mirrors every indexable archive entry into an
	// Elasticsearch index at this URL as the run progresses.
	IndexURL  string
	IndexName string

	Logger zerolog.Logger
}

// Orchestrator holds the wired components and KV stores for one run.
type Orchestrator struct {
	cfg Config

	downloader *downloader.Downloader
	client     *wikiclient.Client
	rewriter   *rewriter.Rewriter
	archive    archive.Writer

	runID        string
	metadata     *model.WikiMetadata
	formatFlags  model.FormatFlags
	status       model.ScrapeStatus
	mainPageID   string

	articleDetails *kvstore.Store[model.ArticleDetail]
	filesToDownload *kvstore.Store[model.FileTask]
	filesToRetry    *kvstore.Store[model.FileTask]
	redirects       *kvstore.Store[string]

	moduleDependencies mapset.Set[string]

	jsConfigVarsMu sync.Mutex
	jsConfigVars   string
}

// New constructs an Orchestrator from cfg. Phases 1-9 run in Run.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:                cfg,
		runID:              runid.New(),
		formatFlags:        model.ParseFormatFlags(cfg.FormatToken),
		articleDetails:     kvstore.New[model.ArticleDetail](filepath.Join(cfg.ScratchDir, "articleDetail.gob")),
		filesToDownload:    kvstore.New[model.FileTask](filepath.Join(cfg.ScratchDir, "filesToDownload.gob")),
		filesToRetry:       kvstore.New[model.FileTask](filepath.Join(cfg.ScratchDir, "filesToRetry.gob")),
		redirects:          kvstore.New[string](filepath.Join(cfg.ScratchDir, "redirects.gob")),
		moduleDependencies: mapset.NewSet[string](),
	}
}

// Run executes all nine phases in order, stopping at the first fatal
// error. After every phase that mutates a KV store, the stores are
// dumped to the scratch directory as a crash-recovery checkpoint.
func (o *Orchestrator) Run(ctx context.Context) errors.E {
	if errE := o.phase1Bootstrap(ctx); errE != nil {
		return errE
	}
	if errE := o.runCheckpointed(ctx, o.phase2EnumerateArticles); errE != nil {
		return errE
	}
	if errE := o.runCheckpointed(ctx, o.phase3BuildRedirectCache); errE != nil {
		return errE
	}
	if errE := o.runCheckpointed(ctx, o.phase4ScrapeArticles); errE != nil {
		return errE
	}
	if errE := o.phase5FetchModules(ctx); errE != nil {
		return errE
	}
	if errE := o.phase6FetchAssets(ctx); errE != nil {
		return errE
	}
	if errE := o.runCheckpointed(ctx, o.phase7FetchFilesPass1); errE != nil {
		return errE
	}
	if errE := o.runCheckpointed(ctx, o.phase8RetryFiles); errE != nil {
		return errE
	}
	return o.phase9Finalize(ctx)
}

// runCheckpointed runs phase and, on success, dumps every KV store so a
// crash during the next phase resumes from this point rather than from
// the start of the run.
func (o *Orchestrator) runCheckpointed(ctx context.Context, phase func(context.Context) errors.E) errors.E {
	if errE := phase(ctx); errE != nil {
		return errE
	}
	return o.dumpStores()
}

// phase1Bootstrap: metadata probe, capability probe, namespace load
// (folded into GetMetadata), directory setup.
func (o *Orchestrator) phase1Bootstrap(ctx context.Context) errors.E {
	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(o.cfg.ScratchDir, 0o755); err != nil {
		return errors.WithStack(err)
	}

	o.cfg.Logger = o.cfg.Logger.With().Str("run", o.runID).Logger()

	if errE := o.loadStores(); errE != nil {
		return errE
	}

	scratch, errE := cache.NewScratch(o.cfg.ScratchDir, o.cfg.SkipCacheCleaning)
	if errE != nil {
		return errE
	}

	var blob *cache.BlobCache
	reqTimeout := time.Duration(o.cfg.RequestTimeout) * time.Second
	d := downloader.New(o.cfg.APIURL, o.cfg.RESTURL, o.cfg.VEURL, o.cfg.Speed, reqTimeout, blob, scratch, o.cfg.Logger)
	if o.cfg.BlobCacheURL != "" {
		d.Blob = cache.NewBlobCache(o.cfg.BlobCacheURL, d.Client)
	}
	d.LocalParsoidCmd = o.cfg.LocalParsoidCmd
	d.LocalMCSCmd = o.cfg.LocalMCSCmd
	d.LocalParsoidAddr = o.cfg.LocalParsoidAddr
	d.LocalMCSAddr = o.cfg.LocalMCSAddr
	o.downloader = d

	o.client = wikiclient.New(d, o.cfg.APIURL, "_")

	metadata, errE := o.client.GetMetadata(ctx)
	if errE != nil {
		return errE
	}
	o.metadata = metadata
	o.mainPageID = metadata.MainPage

	if errE := d.Probe(ctx, metadata.BaseURL+metadata.MainPage, o.cfg.AllowLocalFallback); errE != nil {
		return errE
	}

	if errE := d.SeedFromRobotsTxt(ctx, metadata.BaseURL, robotsUserAgent); errE != nil {
		return errE
	}

	o.rewriter = rewriter.New(rewriter.Config{
		Metadata:   metadata,
		Flags:      o.formatFlags,
		Creator:    o.cfg.Creator,
		IsMirrored: o.isMirrored,
		RedirectTarget: o.redirectTarget,
		ArchivePathForArticle: archivePathForArticle,
		ArchivePathForMedia:   o.archivePathForMedia,
		ArticleURL:            func(title string) string { return metadata.BaseURL + title },
	})

	writer, errE := archive.NewDirectoryWriter(o.cfg.OutputDir)
	if errE != nil {
		return errE
	}
	o.archive = writer

	if o.cfg.IndexURL != "" {
		sink, errE := index.NewSink(ctx, d.Client.HTTPClient, o.cfg.Logger, o.cfg.IndexURL, o.cfg.IndexName)
		if errE != nil {
			return errE
		}
		o.archive = index.Writer{Writer: writer, Sink: sink}
	}

	return nil
}

// loadStores restores every KV store's gob snapshot, so a run resuming in
// the same scratch directory after a crash picks up where it left off
// instead of re-enumerating from scratch.
func (o *Orchestrator) loadStores() errors.E {
	if errE := o.articleDetails.Load(); errE != nil {
		return errE
	}
	if errE := o.filesToDownload.Load(); errE != nil {
		return errE
	}
	if errE := o.filesToRetry.Load(); errE != nil {
		return errE
	}
	if errE := o.redirects.Load(); errE != nil {
		return errE
	}
	return nil
}

// dumpStores persists every KV store's gob snapshot, called as a
// checkpoint at the end of each phase that mutates them.
func (o *Orchestrator) dumpStores() errors.E {
	if errE := o.articleDetails.Dump(); errE != nil {
		return errE
	}
	if errE := o.filesToDownload.Dump(); errE != nil {
		return errE
	}
	if errE := o.filesToRetry.Dump(); errE != nil {
		return errE
	}
	if errE := o.redirects.Dump(); errE != nil {
		return errE
	}
	return nil
}

func (o *Orchestrator) isMirrored(title string) bool {
	_, ok := o.articleDetails.Get(title)
	return ok
}

func (o *Orchestrator) redirectTarget(title string) (string, bool) {
	return o.redirects.Get(title)
}

func archivePathForArticle(title string) string {
	return "../A/" + encodeArchiveHref(title)
}

func (o *Orchestrator) archivePathForMedia(sourceURL string) (string, bool) {
	if sourceURL == "" {
		return "", false
	}
	return "../I/" + filepath.Base(sourceURL), true
}
