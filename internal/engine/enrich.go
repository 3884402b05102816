package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// sanPass reads certificate SANs for the first SANTargets candidates.
// Candidates are taken in insertion order; the cap is a resource bound, not
// a ranking.
func (r *run) sanPass(ctx context.Context, tree *SeedTree) {
	reader := r.adapters.SANs
	if reader == nil {
		return
	}

	targets := r.candidates.Head(r.cfg.SANTargets)
	results := make([][]string, len(targets))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, host := range targets {
		g.Go(func() error {
			results[i] = reader.ReadSANs(ctx, host)
			return nil
		})
	}
	_ = g.Wait()

	found := 0
	for _, sans := range results {
		for _, s := range sans {
			h := strings.TrimPrefix(NormalizeHost(s), "*.")
			if h == "" {
				continue
			}
			r.observe(tree, h, ReasonTLSSAN)
			found++
		}
	}
	r.detail(fmt.Sprintf("%d SAN names from %d hosts", found, len(targets)))
}

// cnamePass follows CNAME chains for the first CNAMETargets candidates.
func (r *run) cnamePass(ctx context.Context, tree *SeedTree) {
	resolver := r.adapters.CNAMEs
	if resolver == nil {
		return
	}

	targets := r.candidates.Head(r.cfg.CNAMETargets)
	results := make([][]string, len(targets))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, host := range targets {
		g.Go(func() error {
			chain := resolver.ResolveChain(ctx, host)
			if len(chain) > r.cfg.CNAMEMaxHops {
				chain = chain[:r.cfg.CNAMEMaxHops]
			}
			results[i] = chain
			return nil
		})
	}
	_ = g.Wait()

	found := 0
	for _, chain := range results {
		for _, c := range chain {
			r.observe(tree, c, ReasonCNAME)
			found++
		}
	}
	r.detail(fmt.Sprintf("%d CNAME hops from %d hosts", found, len(targets)))
}

// ctPass queries CT logs once for domain and records every matching name.
func (r *run) ctPass(ctx context.Context, tree *SeedTree, domain string) int {
	ct := r.adapters.CT
	if ct == nil || domain == "" {
		return 0
	}

	names := CTNames(ct.Query(ctx, domain), domain, r.cfg.CTMaxNames)
	for _, h := range names {
		r.observe(tree, h, ReasonCTLog)
	}
	r.detail(fmt.Sprintf("%d CT log names for %s", len(names), domain))
	return len(names)
}

// CTNames extracts the common name and alternative names of records that
// equal domain or are strict subdomains of it. Wildcard prefixes are
// stripped, names are deduplicated, and the result is capped at max.
func CTNames(records []CertRecord, domain string, max int) []string {
	domain = NormalizeHost(domain)
	suffix := "." + domain
	seen := make(map[string]bool)
	var out []string

	add := func(name string) bool {
		n := strings.TrimPrefix(NormalizeHost(name), "*.")
		if n == "" || (n != domain && !strings.HasSuffix(n, suffix)) {
			return true
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
		return len(out) < max
	}

	for _, rec := range records {
		if !add(rec.CommonName) {
			return out
		}
		for _, alt := range rec.AltNames {
			if !add(alt) {
				return out
			}
		}
	}
	return out
}
