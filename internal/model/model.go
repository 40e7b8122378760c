// Package model holds the data types shared across the scrape pipeline:
// wiki metadata, article details, file tasks, redirects, capabilities,
// and run-wide status counters.
package model

import (
	"strings"
	"sync/atomic"
)

// Namespace describes one MediaWiki namespace as returned by siteinfo.
type Namespace struct {
	ID              int
	Canonical       string
	Localized       string
	IsContent       bool
	AllowedSubpages bool
}

// WikiMetadata is discovered once at startup and never mutated afterwards.
type WikiMetadata struct {
	BaseURL     string
	APIURL      string
	RESTURL     string
	VEURL       string
	MainPage    string
	Direction   string
	LanguageISO2 string
	LanguageISO3 string
	SiteName    string

	// Namespaces maps every name variant (lowercased-first, uppercased-first,
	// canonical, localized) of a namespace to the same record.
	Namespaces map[string]*Namespace
}

// NamespaceByID returns the namespace with the given id, or nil.
func (m *WikiMetadata) NamespaceByID(id int) *Namespace {
	for _, ns := range m.Namespaces {
		if ns.ID == id {
			return ns
		}
	}
	return nil
}

// RegisterNamespace registers every name variant of ns so that a lookup by
// canonical name, localized name, or either with a differently-cased first
// letter all resolve to the same record.
func (m *WikiMetadata) RegisterNamespace(ns *Namespace) {
	if m.Namespaces == nil {
		m.Namespaces = map[string]*Namespace{}
	}
	for _, name := range []string{ns.Canonical, ns.Localized} {
		if name == "" {
			continue
		}
		m.Namespaces[name] = ns
		m.Namespaces[flipFirstCase(name, true)] = ns
		m.Namespaces[flipFirstCase(name, false)] = ns
	}
}

func flipFirstCase(s string, upper bool) string {
	if s == "" {
		return s
	}
	first := s[:1]
	rest := s[1:]
	if upper {
		first = strings.ToUpper(first)
	} else {
		first = strings.ToLower(first)
	}
	return first + rest
}

// PageRef is a lightweight title+namespace reference, used for categories,
// subcategories, templates and redirects.
type PageRef struct {
	PageID    int64
	Namespace int
	Title     string
}

// Coordinates is a single geo position attached to an article.
type Coordinates struct {
	Lat float64
	Lon float64
}

// ArticleDetail is one enumerated article (or category/other namespace
// page), possibly split into pagination shards.
type ArticleDetail struct {
	Title      string
	PageID     int64
	Namespace  int
	RevisionID int64

	Coordinates  *Coordinates
	Redirects    []PageRef
	Categories   []PageRef
	SubCategories []PageRef
	Pages        []PageRef
	Thumbnail    string

	// PrevArticleID/NextArticleID are shard-pagination neighbours,
	// referenced by id so that the KV store, not an in-memory graph,
	// owns the full chain.
	PrevArticleID string
	NextArticleID string
}

// FileTask is one media item queued for download.
type FileTask struct {
	ArchivePath     string
	SourceURL       string
	Namespace       string // target archive namespace, "I" for images
	Width           int
	ScaleMultiplier float64
}

// Upgrade reports whether other has a strictly higher resolution than f,
// per invariant 3: only a higher width or scale-multiplier replaces the
// stored entry.
func (f FileTask) Upgrade(other FileTask) bool {
	return other.Width > f.Width || other.ScaleMultiplier > f.ScaleMultiplier
}

// Merge returns the entry that should be kept between an existing and an
// incoming FileTask for the same archive path: the one with max(width) and
// max(mult) component-wise.
func Merge(existing, incoming FileTask) FileTask {
	merged := existing
	if incoming.Width > merged.Width {
		merged.Width = incoming.Width
	}
	if incoming.ScaleMultiplier > merged.ScaleMultiplier {
		merged.ScaleMultiplier = incoming.ScaleMultiplier
	}
	return merged
}

// Redirect is a from-title to to-title mapping discovered via backlinks.
type Redirect struct {
	From string
	To   string
}

// Capabilities records what the Downloader's startup probe found.
type Capabilities struct {
	RESTAvailable         bool
	VEAvailable           bool
	CoordinatesAvailable  bool
}

// Usable reports whether at least one rendering path is available; when
// false the orchestrator must abort.
func (c Capabilities) Usable() bool {
	return c.RESTAvailable || c.VEAvailable
}

// FormatFlags models the nozim/nopic/novid/nodet format token as a set of
// independent booleans obtained by substring match against the configured
// format token.
type FormatFlags struct {
	NoZim     bool
	NoPictures bool
	NoVideo   bool
	NoDetails bool
}

// ParseFormatFlags splits a comma-or-plain-concatenated format token like
// "nopic,nodet" by substring match.
func ParseFormatFlags(token string) FormatFlags {
	return FormatFlags{
		NoZim:      strings.Contains(token, "nozim"),
		NoPictures: strings.Contains(token, "nopic"),
		NoVideo:    strings.Contains(token, "novid"),
		NoDetails:  strings.Contains(token, "nodet"),
	}
}

// ScrapeStatus holds run-wide atomic counters. Reads are used only for
// progress logging; writes are always atomic increments from workers.
type ScrapeStatus struct {
	ArticlesSuccess int64
	ArticlesFail    int64
	FilesSuccess    int64
	FilesFail       int64
}

func (s *ScrapeStatus) ArticleSucceeded() { atomic.AddInt64(&s.ArticlesSuccess, 1) }
func (s *ScrapeStatus) ArticleFailed()    { atomic.AddInt64(&s.ArticlesFail, 1) }
func (s *ScrapeStatus) FileSucceeded()    { atomic.AddInt64(&s.FilesSuccess, 1) }
func (s *ScrapeStatus) FileFailed()       { atomic.AddInt64(&s.FilesFail, 1) }

// Snapshot is a point-in-time copy of the counters, safe to log or persist.
type Snapshot struct {
	ArticlesSuccess, ArticlesFail int64
	FilesSuccess, FilesFail       int64
}

func (s *ScrapeStatus) Snapshot() Snapshot {
	return Snapshot{
		ArticlesSuccess: atomic.LoadInt64(&s.ArticlesSuccess),
		ArticlesFail:    atomic.LoadInt64(&s.ArticlesFail),
		FilesSuccess:    atomic.LoadInt64(&s.FilesSuccess),
		FilesFail:       atomic.LoadInt64(&s.FilesFail),
	}
}
