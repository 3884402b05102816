package recon

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

const (
	pageMaxBody      = 2 * 1024 * 1024 // 2MB
	pageMaxRedirects = 5
)

// PageFetcher implements engine.PageFetcher. Redirects are followed, only
// text/html responses are parsed, and everything else yields nil.
type PageFetcher struct {
	UserAgent string
	Timeout   time.Duration
	// Limiter, when set, throttles requests across all crawl workers.
	Limiter *rate.Limiter
	Log     logger.Logger

	client *http.Client
}

// NewPageFetcher returns a fetcher. requestsPerSecond <= 0 disables rate
// limiting.
func NewPageFetcher(timeout time.Duration, userAgent string, requestsPerSecond float64, log logger.Logger) *PageFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.Nop()
	}

	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}

	return &PageFetcher{
		UserAgent: userAgent,
		Timeout:   timeout,
		Limiter:   limiter,
		Log:       log,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				Proxy:           http.ProxyFromEnvironment,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= pageMaxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Fetch downloads url and extracts its links, assets and metadata.
func (f *PageFetcher) Fetch(ctx context.Context, url string) *engine.Page {
	page, err := f.fetch(ctx, url)
	if err != nil {
		f.Log.Debug("page fetch failed", logger.String("url", url), logger.Error(err))
		return nil
	}
	return page
}

func (f *PageFetcher) fetch(ctx context.Context, url string) (*engine.Page, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", htmlAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type %q is not html", contentType)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	var body io.Reader = io.LimitReader(resp.Body, pageMaxBody)
	if decoded, err := charset.NewReader(body, contentType); err == nil {
		body = decoded
	}

	return ParsePage(body, finalURL)
}

// ParsePage extracts the crawl record from an HTML document served at
// finalURL. Every href and src attribute is resolved against the document
// base and split into links and assets by file extension.
func ParsePage(r io.Reader, finalURL string) (*engine.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &engine.Page{FinalURL: finalURL}

	base := finalURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if abs := engine.ToAbsolute(finalURL, href); abs != "" {
			base = abs
		}
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	if content, ok := doc.Find(`meta[property="og:site_name"]`).Last().Attr("content"); ok {
		page.OGSiteName = strings.TrimSpace(content)
	}

	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		for _, v := range strings.Fields(strings.ToLower(rel)) {
			if v == "canonical" {
				href, _ := s.Attr("href")
				page.Canonical = engine.ToAbsolute(base, href)
				return false
			}
		}
		return true
	})

	seen := make(map[string]bool)
	doc.Find("[href], [src]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src"} {
			val, ok := s.Attr(attr)
			if !ok || strings.TrimSpace(val) == "" {
				continue
			}
			abs := engine.ToAbsolute(base, val)
			if abs == "" || !engine.IsHTTPURL(abs) || seen[abs] {
				continue
			}
			seen[abs] = true
			if engine.LooksLikeAsset(abs) {
				page.Assets = append(page.Assets, abs)
			} else {
				page.Links = append(page.Links, abs)
			}
		}
	})

	return page, nil
}
