package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fanoutFetcher serves an endless site: every page links to width fresh
// same-site pages, one off-site page and the root again.
type fanoutFetcher struct {
	width int
	delay time.Duration

	mu    sync.Mutex
	calls map[string]int

	inflight    int32
	maxInflight int32
	next        int32
}

func newFanoutFetcher(width int, delay time.Duration) *fanoutFetcher {
	return &fanoutFetcher{width: width, delay: delay, calls: make(map[string]int)}
}

func (f *fanoutFetcher) Fetch(ctx context.Context, url string) *Page {
	n := atomic.AddInt32(&f.inflight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInflight, max, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.inflight, -1)

	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()

	page := &Page{FinalURL: url}
	for i := 0; i < f.width; i++ {
		id := atomic.AddInt32(&f.next, 1)
		page.Links = append(page.Links, fmt.Sprintf("https://www.example.com/p/%d", id))
	}
	page.Links = append(page.Links,
		"https://www.example.com/",
		"https://www.example.com/#top",
		"https://elsewhere.org/page",
		"http://www.example.com/plain",
	)
	page.Assets = []string{"https://www.example.com/logo.png"}
	return page
}

func newTestRun(cfg Config, adapters Adapters) *run {
	cfg = cfg.withDefaults()
	return &run{
		cfg:        cfg,
		adapters:   adapters,
		ledger:     NewLedger(),
		candidates: NewCandidateSet(),
		pages:      make(map[string]PageEvidence),
		brandSeen:  make(map[string]bool),
	}
}

func TestCrawl_BudgetAndNoRevisit(t *testing.T) {
	tests := []struct {
		name        string
		maxPages    int
		concurrency int
	}{
		{"serial", 12, 1},
		{"default", 12, 4},
		{"wide", 30, 8},
		{"concurrency above budget", 3, 10},
		{"single page", 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFanoutFetcher(5, time.Millisecond)
			r := newTestRun(Config{MaxPages: tt.maxPages, Concurrency: tt.concurrency}, Adapters{Pages: f})
			tree := &SeedTree{Seed: "example.com"}

			visited := newCrawl(r, tree, "www.example.com").run(context.Background())

			if visited != tt.maxPages {
				t.Errorf("visited = %d, want %d", visited, tt.maxPages)
			}
			if len(f.calls) != visited {
				t.Errorf("distinct fetches = %d, visited = %d", len(f.calls), visited)
			}
			for u, n := range f.calls {
				if n != 1 {
					t.Errorf("%s fetched %d times", u, n)
				}
			}
			if f.calls["https://www.example.com/"] != 1 {
				t.Error("root page not fetched")
			}
			if got := atomic.LoadInt32(&f.maxInflight); int(got) > tt.concurrency {
				t.Errorf("max in-flight = %d, cap %d", got, tt.concurrency)
			}
		})
	}
}

func TestCrawl_OnlyFollowsSameSiteHTTPS(t *testing.T) {
	f := newFanoutFetcher(0, 0)
	r := newTestRun(Config{MaxPages: 50, Concurrency: 2}, Adapters{Pages: f})

	visited := newCrawl(r, &SeedTree{}, "www.example.com").run(context.Background())

	// The root links only to itself, an off-site page, a plain-http page and
	// an asset, none of which may be scheduled.
	if visited != 1 {
		t.Errorf("visited = %d, want 1; calls = %v", visited, f.calls)
	}
	if r.ledger.Score("elsewhere.org") != 3 {
		t.Errorf("elsewhere.org score = %d, want 3 (one link-ref)", r.ledger.Score("elsewhere.org"))
	}
	ev := r.pages["www.example.com"]
	if ev.Assets != 1 {
		t.Errorf("www.example.com assets = %d, want 1", ev.Assets)
	}
}

func TestCrawl_FailedPagesDoNotAbort(t *testing.T) {
	pages := &mockPages{pages: map[string]*Page{
		"https://example.com/": {
			FinalURL: "https://example.com/",
			Links:    []string{"https://example.com/broken", "https://example.com/ok"},
		},
		"https://example.com/ok": {
			FinalURL: "https://example.com/ok",
			Links:    []string{"https://api.example.com/"},
		},
	}}
	r := newTestRun(Config{}, Adapters{Pages: pages})

	visited := newCrawl(r, &SeedTree{}, "example.com").run(context.Background())

	if visited != 4 {
		t.Errorf("visited = %d, want 4; calls = %v", visited, pages.calls)
	}
	if !r.candidates.Contains("api.example.com") {
		t.Error("api.example.com not observed")
	}
}

func TestCrawl_CanonicalAndBrand(t *testing.T) {
	pages := &mockPages{pages: map[string]*Page{
		"https://example.com/": {
			FinalURL:   "https://www.example.com/",
			Canonical:  "https://example-brand.com/home",
			Title:      "Acme — Cloud: Platform | Extra",
			OGSiteName: "Acme",
		},
	}}
	r := newTestRun(Config{}, Adapters{Pages: pages})
	tree := &SeedTree{}

	newCrawl(r, tree, "example.com").run(context.Background())

	if got := r.ledger.Score("example-brand.com"); got != 7 {
		t.Errorf("canonical score = %d, want 7", got)
	}
	if got := r.ledger.Score("www.example.com"); got != 3 {
		t.Errorf("page-load score = %d, want 3", got)
	}
	want := []string{"acme", "cloud", "platform"}
	if len(r.brands) != len(want) {
		t.Fatalf("brands = %v, want %v", r.brands, want)
	}
	for i := range want {
		if r.brands[i] != want[i] {
			t.Errorf("brands[%d] = %q, want %q", i, r.brands[i], want[i])
		}
	}
	if len(tree.Children) != 2 {
		t.Errorf("tree children = %+v, want 2", tree.Children)
	}
}

func TestCrawl_NoFetcher(t *testing.T) {
	r := newTestRun(Config{}, Adapters{})
	if n := newCrawl(r, &SeedTree{}, "example.com").run(context.Background()); n != 0 {
		t.Errorf("visited = %d, want 0", n)
	}
}
