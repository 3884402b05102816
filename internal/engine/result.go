// Package engine scores and classifies hosts related to a seed.
package engine

import (
	"context"
	"time"
)

// Reason is the kind of evidence that linked a host to the investigation.
type Reason string

const (
	ReasonProcessConnection Reason = "process-connection"
	ReasonRedirectTarget    Reason = "redirect-target"
	ReasonCanonical         Reason = "canonical"
	ReasonRedirectChain     Reason = "redirect-chain"
	ReasonTLSSAN            Reason = "tls-san"
	ReasonPageLoad          Reason = "page-load"
	ReasonLinkRef           Reason = "link-ref"
	ReasonCNAME             Reason = "cname"
	ReasonAssetRef          Reason = "asset-ref"
	ReasonCTLog             Reason = "ct-log"
)

// AllReasons lists every reason in descending default weight.
var AllReasons = []Reason{
	ReasonProcessConnection,
	ReasonRedirectTarget,
	ReasonCanonical,
	ReasonRedirectChain,
	ReasonTLSSAN,
	ReasonPageLoad,
	ReasonLinkRef,
	ReasonCNAME,
	ReasonAssetRef,
	ReasonCTLog,
}

// Weights maps each reason to the points it contributes.
type Weights map[Reason]int

// DefaultWeights returns the stock point table.
func DefaultWeights() Weights {
	return Weights{
		ReasonProcessConnection: 10,
		ReasonRedirectTarget:    8,
		ReasonCanonical:         7,
		ReasonRedirectChain:     5,
		ReasonTLSSAN:            4,
		ReasonPageLoad:          3,
		ReasonLinkRef:           3,
		ReasonCNAME:             3,
		ReasonAssetRef:          2,
		ReasonCTLog:             2,
	}
}

// IsKnownReason reports whether r is one of AllReasons.
func IsKnownReason(r Reason) bool {
	for _, k := range AllReasons {
		if k == r {
			return true
		}
	}
	return false
}

// HostScore is a ledger entry.
type HostScore struct {
	Host    string   `json:"host"`
	Score   int      `json:"score"`
	Reasons []Reason `json:"reasons"`
}

// HasReason reports whether r was recorded for the host.
func (h HostScore) HasReason(r Reason) bool {
	for _, x := range h.Reasons {
		if x == r {
			return true
		}
	}
	return false
}

// PageEvidence counts how often crawled pages referenced a host.
type PageEvidence struct {
	Links  int `json:"links"`
	Assets int `json:"assets"`
}

// Frequency is the total number of references.
func (p PageEvidence) Frequency() int {
	return p.Links + p.Assets
}

// Discovery is one event in a seed's hierarchy.
type Discovery struct {
	Host   string `json:"host"`
	Reason Reason `json:"reason"`
}

// SeedTree is the ordered discovery history of one seed.
type SeedTree struct {
	Seed     string      `json:"seed"`
	CoreHost string      `json:"core_host"`
	Children []Discovery `json:"children"`
}

// Result is the top-level output of a discovery run.
type Result struct {
	Seeds        []string    `json:"seeds"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  time.Time   `json:"completed_at"`
	DurationSecs float64     `json:"duration_secs"`
	Hosts        []HostScore `json:"hosts"`
	Candidates   []HostScore `json:"candidates"`
	Hierarchy    []SeedTree  `json:"hierarchy"`
	BrandTokens  []string    `json:"brand_tokens,omitempty"`
	Summary      Summary     `json:"summary"`
}

// HostNames returns the accepted hosts in ranked order.
func (r *Result) HostNames() []string {
	names := make([]string, 0, len(r.Hosts))
	for _, h := range r.Hosts {
		names = append(names, h.Host)
	}
	return names
}

// Summary provides aggregate counts for the run.
type Summary struct {
	CandidatesFound int `json:"candidates_found"`
	HostsAccepted   int `json:"hosts_accepted"`
	PagesVisited    int `json:"pages_visited"`
	CTNames         int `json:"ct_names"`
}

// RedirectStep is one response in a redirect chain.
type RedirectStep struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Location   string `json:"location,omitempty"`
}

// Page is the parsed view of a fetched HTML document.
type Page struct {
	FinalURL   string
	Links      []string
	Assets     []string
	Canonical  string
	Title      string
	OGSiteName string
}

// CertRecord is one Certificate Transparency entry.
type CertRecord struct {
	CommonName string
	AltNames   []string
}

// RedirectFollower walks HTTP redirects from a start URL. It bounds the hop
// count and stops on URL repetition itself.
type RedirectFollower interface {
	Follow(ctx context.Context, url string) []RedirectStep
}

// PageFetcher fetches and parses an HTML page. It returns nil for
// non-HTML content and on any failure.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) *Page
}

// SANReader returns the DNS SANs of the certificate served by host,
// possibly wildcarded. Empty on failure.
type SANReader interface {
	ReadSANs(ctx context.Context, host string) []string
}

// CNAMEResolver returns the CNAME chain starting at host. Empty on failure
// or NXDOMAIN.
type CNAMEResolver interface {
	ResolveChain(ctx context.Context, host string) []string
}

// CTLog returns certificate records for a registrable domain. Empty on
// failure.
type CTLog interface {
	Query(ctx context.Context, domain string) []CertRecord
}

// ConnectionMonitor observes a local process for duration and returns the
// hostnames of its remote peers.
type ConnectionMonitor interface {
	Observe(ctx context.Context, process string, duration time.Duration) ([]string, error)
}
