package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/temoto/robotstxt"
	"gitlab.com/tozd/go/errors"
)

// localSpawnPollEvery is how often Probe polls a freshly spawned local
// Parsoid/MCS process for readiness.
const localSpawnPollEvery = 500 * time.Millisecond

// Probe issues GETs against the mobile-sections endpoint and the
// visual-editor endpoint for mainPage, toggling Capabilities.RESTAvailable
// and Capabilities.VEAvailable respectively. If both fail and
// allowLocalFallback is false, it returns an error: the orchestrator must
// abort. If allowLocalFallback is true and LocalParsoidCmd/LocalMCSCmd are
// configured, it spawns them and re-points BaseURL/BaseURLForMainPage/
// VEURL at LocalParsoidAddr/LocalMCSAddr once they answer.
func (d *Downloader) Probe(ctx context.Context, mainPage string, allowLocalFallback bool) errors.E {
	d.Capabilities.RESTAvailable = d.probeGET(ctx, fmt.Sprintf("%s/page/mobile-sections/%s", d.RESTURL, url.PathEscape(mainPage)))
	d.Capabilities.VEAvailable = d.probeGET(ctx, fmt.Sprintf("%s?action=visualeditor&paction=parse&page=%s&format=json", d.VEURL, url.QueryEscape(mainPage)))

	if d.Capabilities.Usable() {
		return nil
	}
	if !allowLocalFallback {
		return errors.New("no rendering path available and local parser fallback is disabled")
	}
	if len(d.LocalParsoidCmd) == 0 || len(d.LocalMCSCmd) == 0 {
		return errors.New("no rendering path available and no local parser fallback command is configured")
	}
	return d.spawnLocalFallback(ctx)
}

// spawnLocalFallback starts the configured local Parsoid and MCS
// subprocesses, polls each address until it answers, then calls
// SetLocalFallback to re-point the Downloader at them.
func (d *Downloader) spawnLocalFallback(ctx context.Context) errors.E {
	if err := d.spawnSubprocess(d.LocalParsoidCmd); err != nil {
		return err
	}
	if err := d.spawnSubprocess(d.LocalMCSCmd); err != nil {
		return err
	}
	if err := d.waitForReady(ctx, d.LocalParsoidAddr); err != nil {
		return err
	}
	if err := d.waitForReady(ctx, d.LocalMCSAddr); err != nil {
		return err
	}
	d.SetLocalFallback(d.LocalParsoidAddr, d.LocalParsoidAddr)
	d.VEURL = d.LocalMCSAddr
	return nil
}

// spawnSubprocess runs cmd detached in the background, logging a failed
// exit rather than propagating it: readiness is established separately by
// polling, not by the process outliving this call.
func (d *Downloader) spawnSubprocess(cmdline []string) errors.E {
	cmd := exec.Command(cmdline[0], cmdline[1:]...) //nolint:gosec
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
	if err := cmd.Start(); err != nil {
		return errors.WithStack(err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			d.Logger.Warn().Strs("cmd", cmdline).Err(err).Msg("local parser fallback subprocess exited")
		}
	}()
	return nil
}

// waitForReady polls addr until it answers with 2xx or ctx is cancelled.
func (d *Downloader) waitForReady(ctx context.Context, addr string) errors.E {
	ticker := time.NewTicker(localSpawnPollEvery)
	defer ticker.Stop()
	for {
		if d.probeGET(ctx, addr) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
		}
	}
}

// SetLocalFallback re-points the base URLs at a locally running Parsoid +
// MCS pair, used when neither remote REST nor VE endpoints are available.
func (d *Downloader) SetLocalFallback(baseURL, baseURLForMainPage string) {
	d.BaseURL = baseURL
	d.BaseURLForMainPage = baseURLForMainPage
	d.Capabilities.RESTAvailable = true
}

func (d *Downloader) probeGET(ctx context.Context, probeURL string) bool {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// SeedFromRobotsTxt fetches robots.txt from host and, if it names a
// Crawl-delay, uses it to seed a more conservative maxActiveRequests than
// the speed*10 default, honoring declared politeness before the adaptive
// 429-driven throttle ever has a chance to kick in.
func (d *Downloader) SeedFromRobotsTxt(ctx context.Context, host, userAgent string) errors.E {
	robotsURL := host
	if u, err := url.Parse(host); err == nil {
		u.Path = "/robots.txt"
		u.RawQuery = ""
		u.Fragment = ""
		robotsURL = u.String()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		// Absence of robots.txt is not fatal; fall back to the default.
		return nil //nolint:nilerr
	}
	defer resp.Body.Close() //nolint:errcheck

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil //nolint:nilerr
	}

	group := robots.FindGroup(userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return nil
	}
	delaySeconds := group.CrawlDelay.Seconds()
	if delaySeconds <= 0 {
		return nil
	}
	seeded := int32(1.0 / delaySeconds)
	if seeded < 1 {
		seeded = 1
	}
	if seeded < d.MaxActiveRequests() {
		d.maxActiveRequests = seeded
		d.Logger.Info().Int32("max_active_requests", seeded).Msg("seeded concurrency ceiling from robots.txt crawl-delay")
	}
	return nil
}

// GetArticle fetches the raw API response for articleId: the VisualEditor
// parse from VEURL when the id is the configured main page or REST is
// unavailable, otherwise mobile-sections under BaseURL.
func (d *Downloader) GetArticle(ctx context.Context, articleId string, mainPage string) (map[string]any, errors.E) {
	base := d.BaseURL
	if articleId == mainPage {
		base = d.BaseURLForMainPage
	}
	articleURL := fmt.Sprintf("%s/page/mobile-sections/%s", base, url.PathEscape(articleId))
	if !d.Capabilities.RESTAvailable || articleId == mainPage {
		articleURL = fmt.Sprintf("%s?action=visualeditor&paction=parse&page=%s&format=json", d.VEURL, url.QueryEscape(articleId))
	}
	return GetJSON[map[string]any](ctx, d, articleURL)
}
