// Package rewriter runs three passes over a parsed article document (media
// treatment, URL rewriting, structural cleanup) followed by templating,
// producing a self-contained archive page plus the list of media files it
// references.
package rewriter

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/model"
)

// Config bundles everything a Rewriter needs to know about the run it is
// operating within: which articles and media are mirrored, where things
// live in the archive, and the format-flag-driven blacklists.
type Config struct {
	Metadata *model.WikiMetadata
	Flags    model.FormatFlags

	// IsMirrored reports whether title has been (or will be) archived, so
	// links to it can be rewritten instead of left pointing upstream.
	IsMirrored func(title string) bool

	// RedirectTarget resolves a single-hop redirect to its mirrored
	// target, or ("", false) if title is not a known redirect. Chained
	// redirects are not followed past the first hop.
	RedirectTarget func(title string) (string, bool)

	// ArchivePathForArticle returns the archive-relative path for a
	// mirrored article title.
	ArchivePathForArticle func(title string) string

	// ArchivePathForMedia returns the archive-relative path a media
	// source URL would be stored under, or ("", false) if the URL cannot
	// be parsed into one.
	ArchivePathForMedia func(sourceURL string) (string, bool)

	ClassBlacklist        []string
	NoLinkOnlyBlacklist   []string
	DetailsBlacklist      []string
	IDBlacklist           []string
	ClassCallBlacklist    []string
	DisplayForcingClasses []string

	Creator    string
	ArticleURL func(title string) string
}

// Rewriter applies Config's rules to parsed documents.
type Rewriter struct {
	cfg Config
}

// New constructs a Rewriter.
func New(cfg Config) *Rewriter {
	return &Rewriter{cfg: cfg}
}

// Result is the Rewriter's output for one document: the mutated document,
// ready for serialization, plus the media it discovered.
type Result struct {
	MediaDependencies []model.FileTask
}

// Rewrite runs Pass A, Pass B (bounded by speed concurrent workers) and
// Pass C in order over doc, mutating it in place, and returns the media
// files it referenced.
func (r *Rewriter) Rewrite(ctx context.Context, doc *goquery.Document, speed int, title string) (Result, errors.E) {
	media := r.passAMedia(doc)

	if errE := r.passBURLs(ctx, doc, speed); errE != nil {
		return Result{}, errE
	}

	r.passCStructural(doc)

	return Result{MediaDependencies: media}, nil
}

// RenderTemplate merges the rewritten body into the archive page template,
//.
func (r *Rewriter) RenderTemplate(doc *goquery.Document, t TemplateData) (string, errors.E) {
	return renderTemplate(doc, t)
}
