package engine

import (
	"sort"
	"sync"
)

type ledgerEntry struct {
	score   int
	reasons []Reason
	order   int
}

// Ledger accumulates (host, points, reason) evidence. Entries are never
// removed, and repeated evidence compounds. Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
	next    int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*ledgerEntry)}
}

// Record adds points to host and unions reason into its reason set. The
// host is normalized first; empty hosts are ignored.
func (l *Ledger) Record(host string, points int, reason Reason) {
	host = NormalizeHost(host)
	if host == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[host]
	if !ok {
		e = &ledgerEntry{order: l.next}
		l.next++
		l.entries[host] = e
	}
	e.score += points
	if reason == "" {
		return
	}
	for _, r := range e.reasons {
		if r == reason {
			return
		}
	}
	e.reasons = append(e.reasons, reason)
}

// Score returns the current score of host (0 if unknown).
func (l *Ledger) Score(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[NormalizeHost(host)]; ok {
		return e.score
	}
	return 0
}

// Len returns the number of hosts in the ledger.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns every entry sorted by score descending, ties in
// discovery order.
func (l *Ledger) Snapshot() []HostScore {
	l.mu.Lock()
	type row struct {
		hs    HostScore
		order int
	}
	rows := make([]row, 0, len(l.entries))
	for host, e := range l.entries {
		reasons := make([]Reason, len(e.reasons))
		copy(reasons, e.reasons)
		rows = append(rows, row{
			hs:    HostScore{Host: host, Score: e.score, Reasons: reasons},
			order: e.order,
		})
	}
	l.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].hs.Score != rows[j].hs.Score {
			return rows[i].hs.Score > rows[j].hs.Score
		}
		return rows[i].order < rows[j].order
	})

	out := make([]HostScore, len(rows))
	for i, r := range rows {
		out[i] = r.hs
	}
	return out
}

// CandidateSet is the insertion-ordered set of every host ever observed.
// It only grows. Safe for concurrent use.
type CandidateSet struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

// NewCandidateSet returns an empty set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{seen: make(map[string]bool)}
}

// Add inserts host and reports whether it was new.
func (c *CandidateSet) Add(host string) bool {
	host = NormalizeHost(host)
	if host == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[host] {
		return false
	}
	c.seen[host] = true
	c.order = append(c.order, host)
	return true
}

// Contains reports membership.
func (c *CandidateSet) Contains(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[NormalizeHost(host)]
}

// Len returns the set size.
func (c *CandidateSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Hosts returns a copy of the members in insertion order.
func (c *CandidateSet) Hosts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Head returns up to n members in insertion order.
func (c *CandidateSet) Head(n int) []string {
	hosts := c.Hosts()
	if n >= 0 && len(hosts) > n {
		hosts = hosts[:n]
	}
	return hosts
}
