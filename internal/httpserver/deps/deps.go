package deps

import (
	"time"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	Engine   engine.Config   // base run settings; Seeds is filled per request
	Adapters engine.Adapters // live signal sources shared by every request

	MaxPagesLimit    int           // upper bound for the max_pages query parameter
	ConcurrencyLimit int           // upper bound for the concurrency query parameter
	RunTimeout       time.Duration // per-request discovery deadline, 0 for none

	RateLimit RateLimit
}

// RateLimit throttles /v1/discover per client IP. Zero PerMinute disables it.
type RateLimit struct {
	PerMinute  int
	Burst      int
	TrustProxy bool
}

// Now returns TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
