package recon

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

const (
	// DefaultUserAgent identifies orbit to the sites it visits.
	DefaultUserAgent = "orbit/1.0 (+https://github.com/vulnverified/orbit)"
	// DefaultTimeout bounds every network call made by an adapter.
	DefaultTimeout = 8 * time.Second

	redirectMaxHops = 10
	htmlAccept      = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// RedirectFollower implements engine.RedirectFollower by issuing one GET per
// hop with automatic redirects disabled.
type RedirectFollower struct {
	UserAgent string
	Timeout   time.Duration
	MaxHops   int
	Log       logger.Logger

	client *http.Client
}

// NewRedirectFollower returns a follower with the given per-request timeout.
func NewRedirectFollower(timeout time.Duration, userAgent string, log logger.Logger) *RedirectFollower {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedirectFollower{
		UserAgent: userAgent,
		Timeout:   timeout,
		MaxHops:   redirectMaxHops,
		Log:       log,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				Proxy:           http.ProxyFromEnvironment,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Follow walks redirects from url. It stops at a non-3xx response, a 3xx
// without Location, a non-http target, a loop, or after MaxHops requests.
// A network failure ends the chain with whatever was collected so far.
func (f *RedirectFollower) Follow(ctx context.Context, url string) []engine.RedirectStep {
	var chain []engine.RedirectStep
	seen := make(map[string]bool)
	current := url

	for i := 0; i < f.MaxHops; i++ {
		status, location, err := f.hop(ctx, current)
		if err != nil {
			f.Log.Debug("redirect hop failed", logger.String("url", current), logger.Error(err))
			break
		}
		seen[current] = true
		chain = append(chain, engine.RedirectStep{URL: current, StatusCode: status, Location: location})

		if status < 300 || status >= 400 || location == "" {
			break
		}
		next := engine.ToAbsolute(current, location)
		if next == "" || !engine.IsHTTPURL(next) || seen[next] {
			break
		}
		current = next
	}

	return chain
}

func (f *RedirectFollower) hop(ctx context.Context, url string) (int, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", htmlAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	// Drain a little so keep-alive connections can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	location := ""
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location = resp.Header.Get("Location")
	}
	return resp.StatusCode, location, nil
}
