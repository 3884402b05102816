// Package suffix computes registrable domains (eTLD+1) for hostnames.
package suffix

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// MultiLabel is the small allow-list of multi-label public suffixes known to
// the approximation. Anything not listed is treated as a single-label suffix,
// so "example.com.pl" resolves to "com.pl". This is a known precision gap;
// ModePSL trades it for the full Public Suffix List.
var MultiLabel = []string{
	"co.uk", "org.uk", "gov.uk", "ac.uk",
	"co.jp",
	"com.au", "net.au",
	"com.br", "com.cn", "com.tr", "com.mx",
}

var multiLabelSet map[string]bool

func init() {
	multiLabelSet = make(map[string]bool, len(MultiLabel))
	for _, s := range MultiLabel {
		multiLabelSet[s] = true
	}
}

// Mode selects the registrable-domain strategy.
type Mode string

const (
	// ModeApprox uses the generic two-label rule plus MultiLabel.
	ModeApprox Mode = "approx"
	// ModePSL uses golang.org/x/net/publicsuffix. Opt-in: it changes which
	// hosts count as same-site and therefore classification outcomes.
	ModePSL Mode = "psl"
)

// Func maps a hostname to its registrable domain.
type Func func(host string) string

// ForMode returns the registrable-domain function for m. An empty mode is
// ModeApprox.
func ForMode(m Mode) (Func, error) {
	switch m {
	case "", ModeApprox:
		return RegistrableDomain, nil
	case ModePSL:
		return RegistrableDomainPSL, nil
	default:
		return nil, fmt.Errorf("unknown suffix mode %q (want %q or %q)", m, ModeApprox, ModePSL)
	}
}

// RegistrableDomain returns the approximate eTLD+1 of host.
//
//	RegistrableDomain("a.b.example.co.uk") == "example.co.uk"
//	RegistrableDomain("www.example.com")   == "example.com"
//	RegistrableDomain("example.com")       == "example.com"
func RegistrableDomain(host string) string {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	parts := strings.Split(h, ".")
	if len(parts) <= 2 {
		return h
	}

	last2 := strings.Join(parts[len(parts)-2:], ".")
	last3 := strings.Join(parts[len(parts)-3:], ".")
	switch {
	case multiLabelSet[last2]:
		return last3
	case multiLabelSet[last3] && len(parts) >= 4:
		return strings.Join(parts[len(parts)-4:], ".")
	default:
		return last2
	}
}

// RegistrableDomainPSL returns the eTLD+1 of host according to the Public
// Suffix List, falling back to RegistrableDomain for inputs the list rejects
// (bare suffixes, IP literals, empty labels).
func RegistrableDomainPSL(host string) string {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	d, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return RegistrableDomain(h)
	}
	return d
}
