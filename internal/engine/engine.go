package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnverified/orbit/pkg/suffix"
)

// Config holds the runtime configuration for a discovery run.
type Config struct {
	Seeds []string
	// SeedReason, when set, is recorded once for every seed (the process
	// variant uses ReasonProcessConnection).
	SeedReason Reason

	MaxPages    int
	Concurrency int

	SANTargets   int
	CNAMETargets int
	CNAMEMaxHops int
	CTMaxNames   int

	Weights    Weights
	Heuristics Heuristics
	// Site maps a host to its registrable domain. Defaults to
	// suffix.RegistrableDomain.
	Site suffix.Func
}

// DefaultConfig returns the stock settings with no seeds.
func DefaultConfig() Config {
	return Config{
		MaxPages:     12,
		Concurrency:  4,
		SANTargets:   10,
		CNAMETargets: 20,
		CNAMEMaxHops: 5,
		CTMaxNames:   5000,
		Weights:      DefaultWeights(),
		Heuristics:   DefaultHeuristics(),
		Site:         suffix.RegistrableDomain,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxPages <= 0 {
		c.MaxPages = def.MaxPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.SANTargets <= 0 {
		c.SANTargets = def.SANTargets
	}
	if c.CNAMETargets <= 0 {
		c.CNAMETargets = def.CNAMETargets
	}
	if c.CNAMEMaxHops <= 0 {
		c.CNAMEMaxHops = def.CNAMEMaxHops
	}
	if c.CTMaxNames <= 0 {
		c.CTMaxNames = def.CTMaxNames
	}
	if c.Weights == nil {
		c.Weights = def.Weights
	}
	if c.Heuristics.FrequencyThreshold <= 0 && c.Heuristics.StrongReasons == nil && c.Heuristics.NegativeSuffixes == nil {
		c.Heuristics = def.Heuristics
	}
	if c.Site == nil {
		c.Site = def.Site
	}
	return c
}

// Adapters holds the injectable signal sources. A nil adapter skips its pass.
type Adapters struct {
	Redirects RedirectFollower
	Pages     PageFetcher
	SANs      SANReader
	CNAMEs    CNAMEResolver
	CT        CTLog
}

// ProgressReporter is called by the engine to report stage progress.
type ProgressReporter interface {
	Stage(num, total int, msg string)
	Detail(msg string)
	Warn(msg string)
}

const totalStages = 6

// run is the per-invocation state. Nothing in it outlives Run.
type run struct {
	cfg      Config
	adapters Adapters
	progress ProgressReporter

	ledger     *Ledger
	candidates *CandidateSet
	pages      map[string]PageEvidence

	brandSeen map[string]bool
	brands    []string
}

func (r *run) site(host string) string {
	return r.cfg.Site(host)
}

func (r *run) detail(msg string) {
	if r.progress != nil {
		r.progress.Detail(msg)
	}
}

// observe adds host to the candidate set, records the reason's weight in
// the ledger and appends the event to the seed's hierarchy.
func (r *run) observe(tree *SeedTree, host string, reason Reason) {
	host = NormalizeHost(host)
	if host == "" {
		return
	}
	r.candidates.Add(host)
	r.ledger.Record(host, r.cfg.Weights[reason], reason)
	if tree == nil {
		return
	}
	for _, d := range tree.Children {
		if d.Host == host && d.Reason == reason {
			return
		}
	}
	tree.Children = append(tree.Children, Discovery{Host: host, Reason: reason})
}

func (r *run) addBrandTokens(values ...string) {
	for _, t := range brandTokens(values...) {
		if r.brandSeen[t] {
			continue
		}
		r.brandSeen[t] = true
		r.brands = append(r.brands, t)
	}
}

// coreHost picks the highest-scored candidate that shares seed's
// registrable domain. Ties go to the earliest discovered; with no match the
// seed itself is used.
func (r *run) coreHost(seed string) string {
	seedSite := r.site(seed)
	best, bestScore := seed, -1
	for _, h := range r.candidates.Hosts() {
		if r.site(h) != seedSite {
			continue
		}
		if s := r.ledger.Score(h); s > bestScore {
			best, bestScore = h, s
		}
	}
	return best
}

// Run executes the full discovery pipeline for every seed and classifies the
// accumulated evidence. Adapter failures never abort the run; the only error
// is the absence of a usable seed.
func Run(ctx context.Context, cfg Config, adapters Adapters, progress ProgressReporter) (*Result, error) {
	cfg = cfg.withDefaults()

	var seeds []string
	seen := make(map[string]bool)
	for _, s := range cfg.Seeds {
		h := SeedHost(s)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		seeds = append(seeds, h)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no valid seed host given")
	}

	r := &run{
		cfg:        cfg,
		adapters:   adapters,
		progress:   progress,
		ledger:     NewLedger(),
		candidates: NewCandidateSet(),
		pages:      make(map[string]PageEvidence),
		brandSeen:  make(map[string]bool),
	}

	result := &Result{
		Seeds:     seeds,
		StartedAt: time.Now(),
	}

	for _, s := range seeds {
		r.candidates.Add(s)
	}

	var coreSites []string
	coreSeen := make(map[string]bool)

	for i, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		prefix := ""
		if len(seeds) > 1 {
			prefix = fmt.Sprintf("[%s %d/%d] ", seed, i+1, len(seeds))
		}

		tree := SeedTree{Seed: seed}
		if cfg.SeedReason != "" {
			r.ledger.Record(seed, cfg.Weights[cfg.SeedReason], cfg.SeedReason)
		}

		// Stage 1: redirects.
		r.stage(1, prefix+"Following redirects...")
		r.redirectPass(ctx, &tree, seed)

		// Stage 2: crawl.
		core := r.coreHost(seed)
		tree.CoreHost = core
		if site := r.site(core); !coreSeen[site] {
			coreSeen[site] = true
			coreSites = append(coreSites, site)
		}
		r.stage(2, fmt.Sprintf("%sCrawling %s (budget %d pages)...", prefix, core, cfg.MaxPages))
		visited := newCrawl(r, &tree, core).run(ctx)
		result.Summary.PagesVisited += visited
		r.detail(fmt.Sprintf("Visited %d pages, %d candidate hosts so far", visited, r.candidates.Len()))

		// Stage 3: TLS SANs.
		r.stage(3, prefix+"Reading TLS certificate SANs...")
		r.sanPass(ctx, &tree)

		// Stage 4: CNAME chains.
		r.stage(4, prefix+"Resolving CNAME chains...")
		r.cnamePass(ctx, &tree)

		// Stage 5: CT logs.
		base := r.site(seed)
		r.stage(5, fmt.Sprintf("%sQuerying Certificate Transparency for %s...", prefix, base))
		result.Summary.CTNames += r.ctPass(ctx, &tree, base)

		result.Hierarchy = append(result.Hierarchy, tree)
	}

	// Stage 6: classification.
	r.stage(6, "Classifying hosts...")
	snapshot := r.ledger.Snapshot()
	classifier := Classifier{
		Heuristics: cfg.Heuristics,
		Site:       cfg.Site,
		CoreSites:  coreSites,
	}
	result.Hosts = classifier.Classify(snapshot, r.pages)
	result.Candidates = snapshot
	result.BrandTokens = r.brands

	result.CompletedAt = time.Now()
	result.DurationSecs = result.CompletedAt.Sub(result.StartedAt).Seconds()
	result.Summary.CandidatesFound = r.candidates.Len()
	result.Summary.HostsAccepted = len(result.Hosts)
	r.detail(fmt.Sprintf("%d of %d candidates accepted", len(result.Hosts), r.candidates.Len()))

	return result, nil
}

func (r *run) stage(num int, msg string) {
	if r.progress != nil {
		r.progress.Stage(num, totalStages, msg)
	}
}

// redirectPass follows redirects from the plain and TLS root URLs of seed.
// Every hop that answered with a Location is a redirect-chain host; every
// resolved Location is a redirect-target.
func (r *run) redirectPass(ctx context.Context, tree *SeedTree, seed string) {
	follower := r.adapters.Redirects
	if follower == nil {
		return
	}

	for _, start := range []string{"http://" + seed + "/", "https://" + seed + "/"} {
		chain := follower.Follow(ctx, start)
		for _, step := range chain {
			if step.Location == "" {
				continue
			}
			if h := ExtractHost(step.URL); h != "" {
				r.observe(tree, h, ReasonRedirectChain)
			}
			if h := ExtractHost(ToAbsolute(step.URL, step.Location)); h != "" {
				r.observe(tree, h, ReasonRedirectTarget)
			}
		}
		r.detail(fmt.Sprintf("%s: %d responses in redirect chain", start, len(chain)))
	}
}
