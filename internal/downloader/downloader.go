// Package downloader is the Downloader component: a single
// adaptive-concurrency HTTP client used for every outbound request, JSON
// or binary. Retry/backoff is delegated to retryablehttp, configured with
// a CheckRetry predicate that retries on timeout or any non-404 status,
// treating 404 as terminal; adaptive concurrency and the Blob Cache /
// image-optimisation integration are layered on top.
package downloader

import (
	"context"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/cache"
	"gitlab.com/tozd/mwarchive/internal/model"
)

const (
	failAfter       = 7
	claimPollEvery  = 200 * time.Millisecond
	throttleFactor  = 0.9
)

// Downloader is the single adaptive-concurrency HTTP client shared by the
// Wiki Client, Renderer's media enumeration, and the orchestrator's file
// fetch passes.
type Downloader struct {
	Client *retryablehttp.Client
	Blob   *cache.BlobCache
	Scratch *cache.Scratch
	Optimizer *Pipeline
	Logger zerolog.Logger

	BaseURL           string
	BaseURLForMainPage string
	RESTURL           string
	VEURL             string

	// LocalParsoidCmd/LocalMCSCmd, when non-empty, are spawned by Probe as
	// local Parsoid/MCS subprocesses when neither the remote REST nor VE
	// endpoint is reachable. LocalParsoidAddr/LocalMCSAddr are the
	// addresses Probe polls for readiness and then re-points BaseURL/
	// BaseURLForMainPage and VEURL at.
	LocalParsoidCmd  []string
	LocalMCSCmd      []string
	LocalParsoidAddr string
	LocalMCSAddr     string

	speed int

	activeRequests    int32
	maxActiveRequests int32

	urls *urlCache

	Capabilities model.Capabilities

	imageExtensionRE *imageExtensionMatcher
}

// New constructs a Downloader for the given base URLs. speed is the base
// concurrency unit from which every other pool size in the pipeline is derived.
func New(baseURL, restURL, veURL string, speed int, reqTimeout time.Duration, blob *cache.BlobCache, scratch *cache.Scratch, logger zerolog.Logger) *Downloader {
	transport := cleanhttp.DefaultPooledTransport()
	httpClient := &http.Client{Transport: transport, Timeout: reqTimeout}

	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	client.RetryMax = failAfter
	client.Logger = nil

	d := &Downloader{
		Client:             client,
		Blob:               blob,
		Scratch:            scratch,
		Optimizer:          NewPipeline(),
		Logger:             logger,
		BaseURL:            baseURL,
		BaseURLForMainPage: baseURL,
		RESTURL:            restURL,
		VEURL:              veURL,
		speed:              speed,
		maxActiveRequests:  int32(speed * 10), //nolint:mnd
		urls:               newURLCache(),
		imageExtensionRE:   newImageExtensionMatcher(),
	}
	client.CheckRetry = d.checkRetry
	return d
}

// Speed returns the base concurrency unit, used by other phases to derive
// their own pool sizes (article scrape and link rewriting: speed, file
// queue: speed*5, redirect discovery: speed*3).
func (d *Downloader) Speed() int { return d.speed }

// checkRetry is the retry predicate: retry on a client-side
// abort (timeout, wrapped as err != nil by the transport) or on any HTTP
// status other than 404; a 404 is surfaced immediately as non-retriable.
// A 429 additionally throttles maxActiveRequests before the normal retry.
func (d *Downloader) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		d.throttle()
	}
	if err != nil {
		// Client-side abort (timeout, connection reset, ...): retry.
		return true, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotModified {
		return false, nil
	}
	return true, nil
}

// throttle implements maxActiveRequests <- max(1, ceil(0.9*maxActiveRequests)),
// the rate-adaptation invariant: it only ever decreases, never recovers
// within a run.
func (d *Downloader) throttle() {
	for {
		current := atomic.LoadInt32(&d.maxActiveRequests)
		next := int32(math.Max(1, math.Ceil(throttleFactor*float64(current))))
		if next >= current {
			return
		}
		if atomic.CompareAndSwapInt32(&d.maxActiveRequests, current, next) {
			d.Logger.Warn().Int32("max_active_requests", next).Msg("throttled by 429")
			return
		}
	}
}

// MaxActiveRequests returns the current adaptive concurrency ceiling.
func (d *Downloader) MaxActiveRequests() int32 {
	return atomic.LoadInt32(&d.maxActiveRequests)
}

// claimSlot blocks, polling every claimPollEvery, until a request slot is
// free, then claims it.
func (d *Downloader) claimSlot(ctx context.Context) errors.E {
	ticker := time.NewTicker(claimPollEvery)
	defer ticker.Stop()
	for {
		if atomic.LoadInt32(&d.activeRequests) < atomic.LoadInt32(&d.maxActiveRequests) {
			atomic.AddInt32(&d.activeRequests, 1)
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (d *Downloader) releaseSlot() {
	atomic.AddInt32(&d.activeRequests, -1)
}

// withSlot runs fn after claiming a concurrency slot, always releasing it
// afterwards.
func (d *Downloader) withSlot(ctx context.Context, fn func() errors.E) errors.E {
	if err := d.claimSlot(ctx); err != nil {
		return err
	}
	defer d.releaseSlot()
	return fn()
}
