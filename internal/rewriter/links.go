package rewriter

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"gitlab.com/tozd/go/errors"
)

type linkAction int

const (
	actionNone linkAction = iota
	actionDelete
	actionLeave
	actionSetHref
	actionAppendClass
	actionUnwrap
)

type linkDecision struct {
	action   linkAction
	href     string
	class    string
}

// passBURLs is Pass B. The decision for each <a>/<area> is
// computed concurrently (bounded by speed workers) against a pre-snapshotted
// slice of nodes; the DOM mutation itself is then applied sequentially,
// since goquery selections are not safe for concurrent mutation.
func (r *Rewriter) passBURLs(ctx context.Context, doc *goquery.Document, speed int) errors.E {
	sel := doc.Find("a, area")
	n := sel.Length()
	if n == 0 {
		return nil
	}

	nodes := make([]*goquery.Selection, n)
	sel.Each(func(i int, s *goquery.Selection) { nodes[i] = s })

	decisions := make([]linkDecision, n)

	workers := speed
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range nodes {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			decisions[i] = r.decideLink(nodes[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.WithStack(err)
	}

	for i, d := range decisions {
		applyLinkDecision(nodes[i], d)
	}

	return nil
}

func (r *Rewriter) decideLink(a *goquery.Selection) linkDecision {
	href, hasHref := a.Attr("href")
	if !hasHref || href == "" {
		return linkDecision{action: actionDelete}
	}
	if strings.HasPrefix(href, "#") {
		return linkDecision{action: actionLeave}
	}

	if lat, lon, ok := parseGeoURL(href); ok {
		return linkDecision{action: actionSetHref, href: formatGeoURI(lat, lon)}
	}

	rel, hasRel := a.Attr("rel")
	if hasRel {
		return r.decideParsoidLink(href, rel)
	}

	return r.decideMirroredLink(href)
}

func (r *Rewriter) decideParsoidLink(href, rel string) linkDecision {
	switch {
	case strings.Contains(rel, "mw:WikiLink/Interwiki"):
		return linkDecision{action: actionAppendClass, class: "external"}

	case strings.Contains(rel, "mw:ExtLink") || strings.Contains(rel, "nofollow"):
		switch {
		case strings.HasPrefix(href, "/"):
			return linkDecision{action: actionSetHref, href: r.absoluteAgainstWiki(href)}
		case strings.HasPrefix(href, "./"):
			return linkDecision{action: actionUnwrap}
		default:
			return linkDecision{action: actionLeave}
		}

	case strings.Contains(rel, "mw:WikiLink") || strings.Contains(rel, "mw:referencedBy"):
		return r.decideMirroredLink(href)

	default:
		return linkDecision{action: actionLeave}
	}
}

// decideMirroredLink implements the shared mirrored/redirect/unwrap
// decision used both for Parsoid wiki-links and plain MediaWiki-native
// HTML links.
func (r *Rewriter) decideMirroredLink(href string) linkDecision {
	title := titleFromHref(href)
	anchor := ""
	if i := strings.IndexByte(href, '#'); i >= 0 {
		anchor = href[i:]
	}
	if title == "" {
		return linkDecision{action: actionLeave}
	}

	if r.cfg.IsMirrored != nil && r.cfg.IsMirrored(title) {
		path := title
		if r.cfg.ArchivePathForArticle != nil {
			path = r.cfg.ArchivePathForArticle(title)
		}
		return linkDecision{action: actionSetHref, href: path + anchor}
	}

	if r.cfg.RedirectTarget != nil {
		if target, ok := r.cfg.RedirectTarget(title); ok && r.cfg.IsMirrored != nil && r.cfg.IsMirrored(target) {
			path := target
			if r.cfg.ArchivePathForArticle != nil {
				path = r.cfg.ArchivePathForArticle(target)
			}
			return linkDecision{action: actionSetHref, href: path + anchor}
		}
	}

	return linkDecision{action: actionUnwrap}
}

func (r *Rewriter) absoluteAgainstWiki(href string) string {
	if r.cfg.Metadata == nil {
		return href
	}
	base, err := url.Parse(r.cfg.Metadata.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func applyLinkDecision(a *goquery.Selection, d linkDecision) {
	switch d.action {
	case actionDelete:
		a.Remove()
	case actionLeave, actionNone:
		// no-op
	case actionSetHref:
		a.SetAttr("href", d.href)
	case actionAppendClass:
		existing, _ := a.Attr("class")
		if existing == "" {
			a.SetAttr("class", d.class)
		} else {
			a.SetAttr("class", existing+" "+d.class)
		}
	case actionUnwrap:
		a.Contents().Unwrap()
	}
}
