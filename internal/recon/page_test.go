package recon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!doctype html>
<html><head>
<title> Acme | Cloud Platform </title>
<meta property="og:site_name" content="Acme">
<link rel="Canonical" href="/home">
<link rel="stylesheet" href="https://static.acme-cdn.net/site.css?v=2">
<script src="/app.js"></script>
</head><body>
<a href="/about">About</a>
<a href="https://shop.example.com/">Shop</a>
<a href="/about">About again</a>
<a href="mailto:sales@example.com">Mail</a>
<a href="javascript:void(0)">Nothing</a>
<img src="//images.example.net/logo.png">
</body></html>`

func TestParsePage(t *testing.T) {
	page, err := ParsePage(strings.NewReader(samplePage), "https://www.example.com/index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.Title != "Acme | Cloud Platform" {
		t.Errorf("title = %q", page.Title)
	}
	if page.OGSiteName != "Acme" {
		t.Errorf("og:site_name = %q", page.OGSiteName)
	}
	if page.Canonical != "https://www.example.com/home" {
		t.Errorf("canonical = %q", page.Canonical)
	}

	wantLinks := []string{"https://www.example.com/home", "https://www.example.com/about", "https://shop.example.com/"}
	if strings.Join(page.Links, " ") != strings.Join(wantLinks, " ") {
		t.Errorf("links = %v, want %v", page.Links, wantLinks)
	}
	wantAssets := []string{
		"https://static.acme-cdn.net/site.css?v=2",
		"https://www.example.com/app.js",
		"https://images.example.net/logo.png",
	}
	if strings.Join(page.Assets, " ") != strings.Join(wantAssets, " ") {
		t.Errorf("assets = %v, want %v", page.Assets, wantAssets)
	}
}

func TestParsePage_BaseHref(t *testing.T) {
	html := `<html><head><base href="https://cdn.example.org/root/"></head><body><a href="page">x</a></body></html>`
	page, err := ParsePage(strings.NewReader(html), "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, l := range page.Links {
		if l == "https://cdn.example.org/root/page" {
			found = true
		}
	}
	if !found {
		t.Errorf("links = %v, want base-relative link", page.Links)
	}
}

func TestPageFetcher_FollowsRedirectAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.Redirect(w, r, "/home", http.StatusFound)
		case "/home":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			// "Café" in Latin-1.
			w.Write([]byte("<html><head><title>Caf\xe9</title></head><body><a href=\"/x\">x</a></body></html>"))
		}
	}))
	defer srv.Close()

	page := NewPageFetcher(2*time.Second, "test-agent", 0, nil).Fetch(context.Background(), srv.URL+"/")
	if page == nil {
		t.Fatal("expected a page")
	}
	if page.FinalURL != srv.URL+"/home" {
		t.Errorf("final url = %q", page.FinalURL)
	}
	if page.Title != "Café" {
		t.Errorf("title = %q, want Café", page.Title)
	}
	if len(page.Links) != 1 || page.Links[0] != srv.URL+"/x" {
		t.Errorf("links = %v", page.Links)
	}
}

func TestPageFetcher_NonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"a": "https://x.example.com/"}`))
	}))
	defer srv.Close()

	if page := NewPageFetcher(2*time.Second, "", 0, nil).Fetch(context.Background(), srv.URL+"/"); page != nil {
		t.Errorf("page = %+v, want nil", page)
	}
}

func TestPageFetcher_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := NewPageFetcher(2*time.Second, "", 10, nil)
	if f.Limiter == nil {
		t.Fatal("limiter not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if page := f.Fetch(ctx, srv.URL+"/"); page != nil {
		t.Error("fetch with cancelled context should fail")
	}
}
