package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/archive"
	"gitlab.com/tozd/mwarchive/internal/renderer"
)

var cssURLFuncRE = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// phase6FetchAssets is phase 6: download the main page once,
// extract every <link rel=stylesheet>, fetch each, rewrite the url(...)
// references inside to bare archive-local file names, and append all CSS
// to one archive entry. The files those url(...) references name are not
// downloaded. A favicon is fetched alongside if the main
// page names one.
func (o *Orchestrator) phase6FetchAssets(ctx context.Context) errors.E {
	mainPageURL := o.metadata.BaseURL + o.mainPageID
	body, _, errE := o.downloader.DownloadContent(ctx, mainPageURL)
	if errE != nil {
		return errE
	}

	meta, err := renderer.ExtractPageMeta(strings.NewReader(string(body)))
	if err != nil {
		return err
	}

	var cssBuilder strings.Builder

	for _, href := range meta.StylesheetHrefs {
		if href == "" {
			continue
		}
		css, _, errE := o.downloader.DownloadContent(ctx, o.absoluteAssetURL(href))
		if errE != nil {
			o.cfg.Logger.Warn().Str("href", href).Err(errE).Msg("stylesheet fetch failed")
			continue
		}
		cssBuilder.WriteString(o.rewriteCSSURLs(string(css)))
		cssBuilder.WriteByte('\n')
	}

	if cssBuilder.Len() > 0 {
		if errE := o.archive.AddEntry(archive.Entry{
			Namespace:   archive.NamespaceAsset,
			Path:        "site.css",
			ContentType: "text/css",
			Body:        []byte(cssBuilder.String()),
		}); errE != nil {
			return errE
		}
	}

	if meta.FaviconHref != "" {
		favicon, _, errE := o.downloader.DownloadContent(ctx, o.absoluteAssetURL(meta.FaviconHref))
		if errE != nil {
			o.cfg.Logger.Warn().Err(errE).Msg("favicon fetch failed")
		} else if errE := o.archive.AddEntry(archive.Entry{
			Namespace: archive.NamespaceAsset,
			Path:      "favicon.ico",
			Body:      favicon,
		}); errE != nil {
			return errE
		}
	}

	return nil
}

func (o *Orchestrator) absoluteAssetURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "/") {
		return o.metadata.BaseURL + strings.TrimPrefix(href, "/")
	}
	return href
}

// rewriteCSSURLs rewrites every url(...) reference in css to the
// archive-local asset path.
func (o *Orchestrator) rewriteCSSURLs(css string) string {
	return cssURLFuncRE.ReplaceAllStringFunc(css, func(match string) string {
		sub := cssURLFuncRE.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		ref := strings.TrimSpace(sub[1])
		if strings.HasPrefix(ref, "data:") {
			return match
		}
		name := ref
		if i := strings.LastIndexByte(ref, '/'); i >= 0 {
			name = ref[i+1:]
		}
		return "url(" + name + ")"
	})
}
