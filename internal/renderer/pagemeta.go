package renderer

import (
	"io"

	"github.com/foolin/pagser"
	"gitlab.com/tozd/go/errors"
)

// PageMeta is the subset of a rendered main page's <head> the asset-fetch
// phase needs, extracted with struct-tag selectors instead of ad hoc
// goquery lookups.
type PageMeta struct {
	StylesheetHrefs []string `pagser:"link[rel='stylesheet']->attr(href)"`
	FaviconHref     string   `pagser:"link[rel='icon'],link[rel='shortcut icon']->attr(href)"`
}

// ExtractPageMeta parses in as HTML and returns its PageMeta.
func ExtractPageMeta(in io.Reader) (PageMeta, errors.E) {
	p, err := pagser.New()
	if err != nil {
		return PageMeta{}, errors.WithStack(err)
	}

	var meta PageMeta
	if err := p.ParseReader(&meta, in); err != nil {
		return PageMeta{}, errors.WithStack(err)
	}
	return meta, nil
}
