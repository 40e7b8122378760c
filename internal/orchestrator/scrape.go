package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
	"gitlab.com/tozd/mwarchive/internal/downloader"
	"gitlab.com/tozd/mwarchive/internal/model"
	"gitlab.com/tozd/mwarchive/internal/progress"
	"gitlab.com/tozd/mwarchive/internal/renderer"
	"gitlab.com/tozd/mwarchive/internal/rewriter"
)

const progressReportInterval = 5 * time.Second

// phase4ScrapeArticles is phase 4: iterate articleDetail with
// speed workers; for each, Downloader -> Renderer -> DOM Rewriter ->
// Archive Writer, accumulating media file tasks (resolution-aware upgrade)
// and module dependencies.
func (o *Orchestrator) phase4ScrapeArticles(ctx context.Context) errors.E {
	workers := o.downloader.Speed()
	if workers < 1 {
		workers = 1
	}

	total := int64(o.articleDetails.Len())
	counter := &progress.AtomicCounter{}
	ticker := progress.NewTicker(ctx, counter, total, progressReportInterval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snapshot := range ticker.C {
			o.cfg.Logger.Info().Msgf("[%d/%d] [%.0f%%]", snapshot.Count, snapshot.Total, snapshot.Percent())
		}
	}()
	defer func() {
		ticker.Stop()
		<-done
	}()

	return errors.WithStack(o.articleDetails.Iterate(ctx, workers, func(ctx context.Context, title string, detail model.ArticleDetail) error {
		defer counter.Inc()
		if errE := o.scrapeOne(ctx, title, detail); errE != nil {
			o.status.ArticleFailed()
			o.cfg.Logger.Warn().Err(errE).Str("title", title).Msg("article scrape failed")
			return nil
		}
		o.status.ArticleSucceeded()
		return nil
	}))
}

func (o *Orchestrator) scrapeOne(ctx context.Context, title string, detail model.ArticleDetail) errors.E {
	raw, errE := o.downloader.GetArticle(ctx, title, o.mainPageID)
	if errE != nil {
		return errE
	}

	isMainPage := title == o.mainPageID
	body, errE := renderer.Dispatch(raw, isMainPage, o.downloader.Capabilities.RESTAvailable)
	if errE != nil {
		return errE
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	if err != nil {
		return errors.WithStack(err)
	}

	displayTitle := renderer.DisplayTitle(doc, raw, title)
	ns := o.namespaceFor(detail.Namespace)

	result, errE := o.rewriter.Rewrite(ctx, doc, o.downloader.Speed(), title)
	if errE != nil {
		return errE
	}

	if ns == archive.NamespaceCategory {
		if listing := renderer.RenderCategoryListing(detail.SubCategories, detail.Pages); listing != "" {
			doc.Find("body").AppendHtml(listing)
		}
	}

	for _, task := range result.MediaDependencies {
		o.filesToDownload.Upsert(task.ArchivePath, task, model.Merge)
	}

	if errE := o.fetchModuleDependencies(ctx, title); errE != nil {
		o.cfg.Logger.Warn().Err(errE).Str("title", title).Msg("module dependency fetch failed")
	}

	html, errE := o.rewriter.RenderTemplate(doc, o.templateDataFor(title, displayTitle, detail))
	if errE != nil {
		return errE
	}

	return o.archive.AddEntry(archive.Entry{
		Namespace:   ns,
		Path:        title,
		ContentType: "text/html",
		Body:        []byte(html),
		Indexable:   ns == archive.NamespaceArticle,
	})
}

func (o *Orchestrator) namespaceFor(namespace int) archive.Namespace {
	ns := o.metadata.NamespaceByID(namespace)
	if ns != nil && strings.EqualFold(ns.Canonical, "Category") {
		return archive.NamespaceCategory
	}
	return archive.NamespaceArticle
}

// templateDataFor builds the templating-pass input for one article: a
// subpage breadcrumb when the title contains "/" and the namespace allows
// subpages, and geo.position when coordinates are known.
func (o *Orchestrator) templateDataFor(title, displayTitle string, detail model.ArticleDetail) rewriter.TemplateData {
	t := rewriter.TemplateData{
		Title:      displayTitle,
		Direction:  o.metadata.Direction,
		Creator:    o.cfg.Creator,
		ArticleURL: o.metadata.BaseURL + title,
	}

	for _, module := range o.moduleDependencies.ToSlice() {
		t.ModuleStyles = append(t.ModuleStyles, "../-/"+module+".css")
		t.ModuleScripts = append(t.ModuleScripts, "../-/"+module+".js")
	}

	if idx := strings.LastIndex(title, "/"); idx > 0 {
		ns := o.metadata.NamespaceByID(detail.Namespace)
		if ns != nil && ns.AllowedSubpages {
			t.HasSubpages = true
			t.SubpagePrefix = title[:idx]
		}
	}

	if detail.Coordinates != nil {
		t.HasCoordinates = true
		t.Lat = detail.Coordinates.Lat
		t.Lon = detail.Coordinates.Lon
	}

	return t
}

type moduleParseResponse struct {
	Parse struct {
		Modules      []string `json:"modules"`
		ModuleStyles []string `json:"modulestyles"`
		ModuleScripts []string `json:"modulescripts"`
		JsConfigVars  any      `json:"jsconfigvars"`
	} `json:"parse"`
}

// fetchModuleDependencies issues action=parse&prop=modules|jsconfigvars for
// title and accumulates the result into the run-wide module-dependency
// set; jsConfigVars is taken from the first article reporting a non-empty
// value.
func (o *Orchestrator) fetchModuleDependencies(ctx context.Context, title string) errors.E {
	query := url.Values{}
	query.Set("action", "parse")
	query.Set("page", title)
	query.Set("prop", "modules|jsconfigvars")
	query.Set("format", "json")
	apiURL := fmt.Sprintf("%s?%s", o.cfg.APIURL, query.Encode())

	resp, errE := downloader.GetJSON[moduleParseResponse](ctx, o.downloader, apiURL)
	if errE != nil {
		return errE
	}

	for _, m := range resp.Parse.Modules {
		o.moduleDependencies.Add(m)
	}
	for _, m := range resp.Parse.ModuleStyles {
		o.moduleDependencies.Add(m)
	}
	for _, m := range resp.Parse.ModuleScripts {
		o.moduleDependencies.Add(m)
	}

	if resp.Parse.JsConfigVars != nil {
		o.jsConfigVarsMu.Lock()
		if o.jsConfigVars == "" {
			if s, ok := resp.Parse.JsConfigVars.(string); ok && s != "" {
				o.jsConfigVars = s
			}
		}
		o.jsConfigVarsMu.Unlock()
	}

	return nil
}
