package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// brandSeparators splits page titles like "Acme | Docs: Home" into tokens.
var brandSeparators = regexp.MustCompile(`[|—\-–•·:]+`)

const maxBrandTokensPerPage = 3

type visitResult struct {
	url  string
	page *Page
}

// crawl is one bounded crawl of a core host. The coordinator goroutine
// (run) owns visited, pending and every ledger write; fetch goroutines only
// do I/O and report back over a channel.
type crawl struct {
	r        *run
	tree     *SeedTree
	coreSite string

	maxPages    int
	concurrency int

	visited    map[string]bool
	pending    []string
	inPending  map[string]bool
	dispatched int
}

func newCrawl(r *run, tree *SeedTree, coreHost string) *crawl {
	c := &crawl{
		r:           r,
		tree:        tree,
		coreSite:    r.site(coreHost),
		maxPages:    r.cfg.MaxPages,
		concurrency: r.cfg.Concurrency,
		visited:     make(map[string]bool),
		inPending:   make(map[string]bool),
	}
	c.enqueue("https://" + coreHost + "/")
	return c
}

// enqueue adds u to the work-set unless it was already visited, is already
// pending, or the visited+pending total has reached the page budget.
func (c *crawl) enqueue(u string) bool {
	u = stripFragment(u)
	if c.visited[u] || c.inPending[u] {
		return false
	}
	if len(c.visited)+len(c.pending) >= c.maxPages {
		return false
	}
	c.pending = append(c.pending, u)
	c.inPending[u] = true
	return true
}

// run drains the work-set with at most concurrency fetches in flight and
// never more than maxPages dispatches. A new fetch starts as soon as any
// in-flight one completes. Returns the number of dispatched visits.
func (c *crawl) run(ctx context.Context) int {
	fetcher := c.r.adapters.Pages
	if fetcher == nil {
		return 0
	}

	results := make(chan visitResult)
	inflight := 0

	for {
		for inflight < c.concurrency && len(c.pending) > 0 && c.dispatched < c.maxPages && ctx.Err() == nil {
			u := c.pending[0]
			c.pending = c.pending[1:]
			delete(c.inPending, u)

			// Mark before dispatch so a link discovered while this fetch is
			// in flight cannot schedule the same URL again.
			c.visited[u] = true
			c.dispatched++
			inflight++

			go func(u string) {
				results <- visitResult{url: u, page: fetcher.Fetch(ctx, u)}
			}(u)
		}

		if inflight == 0 {
			break
		}

		res := <-results
		inflight--
		c.apply(res)
	}

	if len(c.pending) > 0 {
		c.r.detail(fmt.Sprintf("Page budget reached (%d), %d URLs left unvisited", c.maxPages, len(c.pending)))
	}
	return c.dispatched
}

// apply turns one fetched page into evidence and new work.
func (c *crawl) apply(res visitResult) {
	page := res.page
	if page == nil {
		return
	}

	if h := ExtractHost(page.FinalURL); h != "" {
		c.r.observe(c.tree, h, ReasonPageLoad)
	}

	c.r.addBrandTokens(page.Title, page.OGSiteName)

	if page.Canonical != "" {
		if h := ExtractHost(page.Canonical); h != "" {
			c.r.observe(c.tree, h, ReasonCanonical)
		}
	}

	for _, u := range uniqueURLs(page.Links, page.Assets) {
		h := ExtractHost(u)
		if h == "" {
			continue
		}

		asset := LooksLikeAsset(u)
		ev := c.r.pages[h]
		reason := ReasonLinkRef
		if asset {
			ev.Assets++
			reason = ReasonAssetRef
		} else {
			ev.Links++
		}
		c.r.pages[h] = ev
		c.r.observe(c.tree, h, reason)

		if asset || !strings.HasPrefix(u, "https:") {
			continue
		}
		if c.r.site(h) != c.coreSite {
			continue
		}
		c.enqueue(u)
	}
}

func uniqueURLs(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, u := range list {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// brandTokens splits title-like strings into at most maxBrandTokensPerPage
// lowercase tokens.
func brandTokens(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range brandSeparators.Split(v, -1) {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			out = append(out, part)
			if len(out) == maxBrandTokensPerPage {
				return out
			}
		}
	}
	return out
}
