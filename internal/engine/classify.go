package engine

import (
	"sort"
	"strings"
)

// DefaultNegativeSuffixes are third-party analytics and ad domains that are
// never reported as owned, whatever their score.
var DefaultNegativeSuffixes = []string{
	"googletagmanager.com",
	"google-analytics.com",
	"doubleclick.net",
	"facebook.net",
	"facebook.com",
	"googlesyndication.com",
	"adnxs.com",
	"scorecardresearch.com",
	"mathtag.com",
	"criteo.com",
	"quantserve.com",
	"cloudflareinsights.com",
}

// Heuristics holds the ownership thresholds and lists used by Classify.
// The rule deliberately favours recall: a host with a structural signal or
// moderate reference frequency is accepted even on a foreign domain.
type Heuristics struct {
	NegativeSuffixes   []string `yaml:"negative_suffixes"`
	StrongReasons      []Reason `yaml:"strong_reasons"`
	FrequencyThreshold int      `yaml:"frequency_threshold"`
	SANMinFrequency    int      `yaml:"tls_san_min_frequency"`
	CNAMEMinFrequency  int      `yaml:"cname_min_frequency"`
}

// DefaultHeuristics returns the stock classifier settings.
func DefaultHeuristics() Heuristics {
	neg := make([]string, len(DefaultNegativeSuffixes))
	copy(neg, DefaultNegativeSuffixes)
	return Heuristics{
		NegativeSuffixes:   neg,
		StrongReasons:      []Reason{ReasonRedirectTarget, ReasonCanonical, ReasonProcessConnection},
		FrequencyThreshold: 3,
		SANMinFrequency:    1,
		CNAMEMinFrequency:  1,
	}
}

// IsNegative reports whether host equals or sits under a negative suffix.
func (h Heuristics) IsNegative(host string) bool {
	for _, suf := range h.NegativeSuffixes {
		suf = NormalizeHost(suf)
		if suf == "" {
			continue
		}
		if host == suf || strings.HasSuffix(host, "."+suf) {
			return true
		}
	}
	return false
}

// LikelyOwned applies the ownership rule to one host.
func (h Heuristics) LikelyOwned(hs HostScore, frequency int, sharesCoreDomain bool) bool {
	if sharesCoreDomain {
		return true
	}
	for _, r := range h.StrongReasons {
		if hs.HasReason(r) {
			return true
		}
	}
	if frequency >= h.FrequencyThreshold {
		return true
	}
	if hs.HasReason(ReasonTLSSAN) && frequency >= h.SANMinFrequency {
		return true
	}
	if hs.HasReason(ReasonCNAME) && frequency >= h.CNAMEMinFrequency {
		return true
	}
	return false
}

// Classifier filters a ledger snapshot down to the accepted host list.
type Classifier struct {
	Heuristics Heuristics
	// Site maps a host to its registrable domain.
	Site func(host string) string
	// CoreSites are the registrable domains of the crawl core hosts.
	CoreSites []string
}

// Classify drops negative hosts, keeps likely-owned ones, and sorts them by
// score descending with ascending host name as tie-break.
func (c Classifier) Classify(snapshot []HostScore, pages map[string]PageEvidence) []HostScore {
	core := make(map[string]bool, len(c.CoreSites))
	for _, s := range c.CoreSites {
		core[s] = true
	}

	seen := make(map[string]bool)
	var out []HostScore
	for _, hs := range snapshot {
		if hs.Host == "" || seen[hs.Host] {
			continue
		}
		if c.Heuristics.IsNegative(hs.Host) {
			continue
		}
		shares := c.Site != nil && core[c.Site(hs.Host)]
		if !c.Heuristics.LikelyOwned(hs, pages[hs.Host].Frequency(), shares) {
			continue
		}
		seen[hs.Host] = true
		out = append(out, hs)
	}

	SortHosts(out)
	return out
}

// SortHosts orders hosts by score descending, then host name ascending.
func SortHosts(hosts []HostScore) {
	sort.SliceStable(hosts, func(i, j int) bool {
		if hosts[i].Score != hosts[j].Score {
			return hosts[i].Score > hosts[j].Score
		}
		return hosts[i].Host < hosts[j].Host
	})
}
