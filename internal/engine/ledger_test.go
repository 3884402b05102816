package engine

import (
	"math/rand"
	"testing"
)

type recordCall struct {
	host   string
	points int
	reason Reason
}

func TestLedger_ScoreIsOrderIndependent(t *testing.T) {
	calls := []recordCall{
		{"example.com", 5, ReasonRedirectChain},
		{"www.example.com", 8, ReasonRedirectTarget},
		{"EXAMPLE.com.", 3, ReasonPageLoad},
		{"cdn.example.net", 2, ReasonAssetRef},
		{"www.example.com", 5, ReasonRedirectChain},
		{"cdn.example.net", 2, ReasonAssetRef},
		{"example.com", 2, ReasonCTLog},
	}
	want := map[string]int{
		"example.com":     10,
		"www.example.com": 13,
		"cdn.example.net": 4,
	}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		shuffled := make([]recordCall, len(calls))
		copy(shuffled, calls)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		l := NewLedger()
		for _, c := range shuffled {
			l.Record(c.host, c.points, c.reason)
		}
		for host, score := range want {
			if got := l.Score(host); got != score {
				t.Fatalf("round %d: score(%s) = %d, want %d", round, host, got, score)
			}
		}
		if l.Len() != len(want) {
			t.Fatalf("round %d: len = %d, want %d", round, l.Len(), len(want))
		}
	}
}

func TestLedger_ReasonsUnion(t *testing.T) {
	l := NewLedger()
	l.Record("a.example.com", 3, ReasonLinkRef)
	l.Record("a.example.com", 3, ReasonLinkRef)
	l.Record("a.example.com", 2, ReasonAssetRef)

	snap := l.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("got %d entries, want 1", len(snap))
	}
	if snap[0].Score != 8 {
		t.Errorf("score = %d, want 8", snap[0].Score)
	}
	if len(snap[0].Reasons) != 2 {
		t.Errorf("reasons = %v, want 2 distinct", snap[0].Reasons)
	}
	if !snap[0].HasReason(ReasonLinkRef) || !snap[0].HasReason(ReasonAssetRef) {
		t.Errorf("missing reason in %v", snap[0].Reasons)
	}
}

func TestLedger_SnapshotOrder(t *testing.T) {
	l := NewLedger()
	l.Record("first.com", 3, ReasonPageLoad)
	l.Record("second.com", 3, ReasonLinkRef)
	l.Record("top.com", 8, ReasonRedirectTarget)
	l.Record("third.com", 3, ReasonCNAME)

	snap := l.Snapshot()
	got := make([]string, len(snap))
	for i, h := range snap {
		got[i] = h.Host
	}
	want := []string{"top.com", "first.com", "second.com", "third.com"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot order = %v, want %v", got, want)
		}
	}
}

func TestLedger_IgnoresEmptyHost(t *testing.T) {
	l := NewLedger()
	l.Record("", 5, ReasonLinkRef)
	l.Record(".", 5, ReasonLinkRef)
	if l.Len() != 0 {
		t.Errorf("len = %d, want 0", l.Len())
	}
}

func TestCandidateSet_InsertionOrder(t *testing.T) {
	c := NewCandidateSet()
	for _, h := range []string{"b.com", "a.com", "B.com.", "c.com"} {
		c.Add(h)
	}
	hosts := c.Hosts()
	want := []string{"b.com", "a.com", "c.com"}
	if len(hosts) != len(want) {
		t.Fatalf("hosts = %v, want %v", hosts, want)
	}
	for i := range want {
		if hosts[i] != want[i] {
			t.Errorf("hosts[%d] = %q, want %q", i, hosts[i], want[i])
		}
	}
	if head := c.Head(2); len(head) != 2 || head[1] != "a.com" {
		t.Errorf("Head(2) = %v", head)
	}
	if head := c.Head(10); len(head) != 3 {
		t.Errorf("Head(10) = %v, want all 3", head)
	}
}
