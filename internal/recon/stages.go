package recon

import (
	"time"

	"github.com/vulnverified/orbit/internal/cache"
	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

// Options configures the network adapters.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond throttles page fetches; 0 means unlimited.
	RequestsPerSecond float64
	// Nameservers overrides the system resolvers ("host:port").
	Nameservers []string
	// Cache stores crt.sh responses; nil disables caching.
	Cache cache.Cache
	// CacheTTL overrides cache.DefaultTTL.
	CacheTTL time.Duration
	// CrtshURL overrides the crt.sh base URL.
	CrtshURL string
	Log      logger.Logger
}

// NewAdapters builds the full set of live signal adapters.
func NewAdapters(opts Options) engine.Adapters {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	ct := NewCrtshSource(opts.Timeout, opts.UserAgent, opts.Cache, log.With(logger.String("adapter", "crtsh")))
	if opts.CacheTTL > 0 {
		ct.CacheTTL = opts.CacheTTL
	}
	if opts.CrtshURL != "" {
		ct.BaseURL = opts.CrtshURL
	}

	return engine.Adapters{
		Redirects: NewRedirectFollower(opts.Timeout, opts.UserAgent, log.With(logger.String("adapter", "redirect"))),
		Pages:     NewPageFetcher(opts.Timeout, opts.UserAgent, opts.RequestsPerSecond, log.With(logger.String("adapter", "page"))),
		SANs:      NewSANReader(opts.Timeout, log.With(logger.String("adapter", "tls"))),
		CNAMEs:    NewResolver(opts.Timeout, opts.Nameservers, log.With(logger.String("adapter", "dns"))),
		CT:        ct,
	}
}
