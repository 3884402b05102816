// Package recon implements the network signal adapters consumed by the
// discovery engine.
package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vulnverified/orbit/internal/cache"
	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

const (
	// CrtshBaseURL is the public crt.sh endpoint.
	CrtshBaseURL    = "https://crt.sh"
	crtshMaxBody    = 50 * 1024 * 1024 // 50MB
	crtshRetryDelay = 3 * time.Second
)

type crtshEntry struct {
	CommonName string `json:"common_name"`
	NameValue  string `json:"name_value"`
}

// CrtshSource implements engine.CTLog against crt.sh.
type CrtshSource struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RetryDelay time.Duration
	// Cache, when set, stores raw responses per domain for CacheTTL.
	Cache    cache.Cache
	CacheTTL time.Duration
	Log      logger.Logger

	Client *http.Client
}

// NewCrtshSource returns a source querying the public crt.sh endpoint.
func NewCrtshSource(timeout time.Duration, userAgent string, c cache.Cache, log logger.Logger) *CrtshSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CrtshSource{
		BaseURL:    CrtshBaseURL,
		UserAgent:  userAgent,
		Timeout:    timeout,
		RetryDelay: crtshRetryDelay,
		Cache:      c,
		CacheTTL:   cache.DefaultTTL,
		Log:        log,
		Client:     http.DefaultClient,
	}
}

// Query returns every certificate record crt.sh holds for domain and its
// subdomains. Failures are logged and yield nil so the run can continue.
func (s *CrtshSource) Query(ctx context.Context, domain string) []engine.CertRecord {
	records, err := s.query(ctx, domain)
	if err != nil {
		s.Log.Debug("crt.sh query failed", logger.String("domain", domain), logger.Error(err))
		return nil
	}
	return records
}

func (s *CrtshSource) query(ctx context.Context, domain string) ([]engine.CertRecord, error) {
	key := cache.CTKey(domain)
	if s.Cache != nil {
		body, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			s.Log.Debug("ct cache read failed", logger.String("key", key), logger.Error(err))
		} else if ok {
			if records, err := ParseCrtshResponse(body); err == nil {
				return records, nil
			}
		}
	}

	u := fmt.Sprintf("%s/?q=%s&output=json", strings.TrimSuffix(s.BaseURL, "/"), url.QueryEscape("%."+domain))
	body, err := s.fetch(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("crt.sh fetch for %s: %w", domain, err)
	}

	records, err := ParseCrtshResponse(body)
	if err != nil {
		return nil, fmt.Errorf("crt.sh JSON parse for %s: %w", domain, err)
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, body, s.CacheTTL); err != nil {
			s.Log.Debug("ct cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return records, nil
}

// ParseCrtshResponse decodes a crt.sh JSON array. name_value may hold
// several names separated by newlines.
func ParseCrtshResponse(body []byte) ([]engine.CertRecord, error) {
	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}

	records := make([]engine.CertRecord, 0, len(entries))
	for _, entry := range entries {
		rec := engine.CertRecord{CommonName: strings.ToLower(strings.TrimSpace(entry.CommonName))}
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				rec.AltNames = append(rec.AltNames, name)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CrtshSource) fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := s.doRequest(ctx, url)
	if err == nil {
		return body, nil
	}

	// If it's a rate limit error, don't retry.
	if strings.Contains(err.Error(), "429") {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.RetryDelay):
	}

	return s.doRequest(ctx, url)
}

func (s *CrtshSource) doRequest(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("crt.sh rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crt.sh returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, crtshMaxBody))
	if err != nil {
		return nil, fmt.Errorf("crt.sh read body: %w", err)
	}

	return body, nil
}
