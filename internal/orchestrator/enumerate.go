package orchestrator

import (
	"bufio"
	"context"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/tozd/mwarchive/internal/model"
	"gitlab.com/tozd/mwarchive/internal/renderer"
)

const redirectDiscoveryFactor = 3

const categoryNamespaceName = "Category"

// phase2EnumerateArticles is phase 2: either read titles from
// ArticleListPath, or walk every content namespace via
// GetArticleDetailsByNamespace with gapcontinue resumption. Each batch's
// redirect discovery runs at speed*redirectDiscoveryFactor concurrency. The
// main page is inserted explicitly when no list is given.
func (o *Orchestrator) phase2EnumerateArticles(ctx context.Context) errors.E {
	if o.cfg.ArticleListPath != "" {
		titles, err := readArticleList(o.cfg.ArticleListPath)
		if err != nil {
			return errors.WithStack(err)
		}
		details, errE := o.client.GetArticleDetailsByIds(ctx, titles, true)
		if errE != nil {
			return errE
		}
		details, errE = o.expandCategoryShards(ctx, details)
		if errE != nil {
			return errE
		}
		return o.storeArticlesAndDiscoverRedirects(ctx, details)
	}

	if _, ok := o.articleDetails.Get(o.mainPageID); !ok {
		o.articleDetails.Set(o.mainPageID, model.ArticleDetail{Title: o.mainPageID})
	}

	for _, ns := range o.contentNamespaceIDs() {
		gapcontinue := ""
		for {
			details, next, errE := o.client.GetArticleDetailsByNamespace(ctx, ns, gapcontinue)
			if errE != nil {
				return errE
			}
			details, errE = o.expandCategoryShards(ctx, details)
			if errE != nil {
				return errE
			}
			if errE := o.storeArticlesAndDiscoverRedirects(ctx, details); errE != nil {
				return errE
			}
			if next == "" {
				break
			}
			gapcontinue = next
		}
	}

	return nil
}

// expandCategoryShards enriches every category-namespace entry in details
// with its full subcategory/page membership, fetched via GetSubCategories
// (itself fully cmcontinue-paginated), and splits it through ShardCategory
// so a category with more than 200 subcategories becomes multiple linked
// ArticleDetail entries instead of one oversized page.
func (o *Orchestrator) expandCategoryShards(ctx context.Context, details map[string]model.ArticleDetail) (map[string]model.ArticleDetail, errors.E) {
	catNS := o.metadata.Namespaces[categoryNamespaceName]
	if catNS == nil {
		return details, nil
	}

	expanded := make(map[string]model.ArticleDetail, len(details))
	for title, detail := range details {
		if detail.Namespace != catNS.ID {
			expanded[title] = detail
			continue
		}

		members, errE := o.client.GetSubCategories(ctx, title, "")
		if errE != nil {
			return nil, errE
		}
		for _, m := range members {
			if m.Namespace == catNS.ID {
				detail.SubCategories = append(detail.SubCategories, m)
			} else {
				detail.Pages = append(detail.Pages, m)
			}
		}

		for _, shard := range renderer.ShardCategory(detail) {
			expanded[shard.Title] = shard
		}
	}
	return expanded, nil
}

func (o *Orchestrator) contentNamespaceIDs() []int {
	seen := map[int]bool{}
	var ids []int
	for _, ns := range o.metadata.Namespaces {
		if !ns.IsContent || seen[ns.ID] {
			continue
		}
		seen[ns.ID] = true
		ids = append(ids, ns.ID)
	}
	return ids
}

func (o *Orchestrator) storeArticlesAndDiscoverRedirects(ctx context.Context, details map[string]model.ArticleDetail) errors.E {
	for title, detail := range details {
		o.articleDetails.Set(title, detail)
	}

	workers := o.downloader.Speed() * redirectDiscoveryFactor
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	g, gctx := errgroup.WithContext(ctx)
	for title := range details {
		title := title
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			redirects, errE := o.client.GetBacklinkRedirects(gctx, title)
			if errE != nil {
				o.cfg.Logger.Warn().Err(errE).Str("title", title).Msg("redirect discovery failed")
				return nil
			}
			for _, r := range redirects {
				o.redirects.Set(r.From, r.To)
			}
			return nil
		})
	}
	return errors.WithStack(g.Wait())
}

func readArticleList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		titles = append(titles, line)
	}
	return titles, scanner.Err()
}
