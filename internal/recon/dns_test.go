package recon

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type fakeZone struct {
	cnames map[string]string
	ptrs   map[string]string
	nx     map[string]bool
}

func (z fakeZone) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	q := r.Question[0]
	hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: 60}

	switch {
	case z.nx[q.Name]:
		m.Rcode = dns.RcodeNameError
	case q.Qtype == dns.TypeCNAME && z.cnames[q.Name] != "":
		m.Answer = append(m.Answer, &dns.CNAME{Hdr: hdr, Target: z.cnames[q.Name]})
	case q.Qtype == dns.TypePTR && z.ptrs[q.Name] != "":
		m.Answer = append(m.Answer, &dns.PTR{Hdr: hdr, Ptr: z.ptrs[q.Name]})
	}
	_ = w.WriteMsg(m)
}

func startDNSServer(t *testing.T, zone fakeZone) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: zone, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestResolver_ResolveChain(t *testing.T) {
	addr := startDNSServer(t, fakeZone{
		cnames: map[string]string{
			"www.example.com.":  "Shop.Example.net.",
			"shop.example.net.": "edge.cdn.net.",
			"self.example.com.": "self.example.com.",
			"h1.example.com.":   "h2.example.com.",
			"h2.example.com.":   "h3.example.com.",
			"h3.example.com.":   "h4.example.com.",
			"h4.example.com.":   "h5.example.com.",
			"h5.example.com.":   "h6.example.com.",
			"h6.example.com.":   "h7.example.com.",
		},
		nx: map[string]bool{"gone.example.com.": true},
	})
	r := NewResolver(time.Second, []string{addr}, nil)

	tests := []struct {
		host string
		want []string
	}{
		{"www.example.com", []string{"shop.example.net", "edge.cdn.net"}},
		{"self.example.com", []string{"self.example.com"}},
		{"h1.example.com", []string{"h2.example.com", "h3.example.com", "h4.example.com", "h5.example.com", "h6.example.com"}},
		{"gone.example.com", nil},
		{"plain.example.com", nil},
	}
	for _, tt := range tests {
		got := r.ResolveChain(context.Background(), tt.host)
		if len(got) != len(tt.want) {
			t.Errorf("ResolveChain(%s) = %v, want %v", tt.host, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("ResolveChain(%s)[%d] = %q, want %q", tt.host, i, got[i], tt.want[i])
			}
		}
	}
}

func TestResolver_LookupPTR(t *testing.T) {
	addr := startDNSServer(t, fakeZone{
		ptrs: map[string]string{"34.216.184.93.in-addr.arpa.": "Edge.Example.com."},
	})
	r := NewResolver(time.Second, []string{addr}, nil)

	if got := r.LookupPTR(context.Background(), "93.184.216.34"); got != "edge.example.com" {
		t.Errorf("LookupPTR = %q, want edge.example.com", got)
	}
	if got := r.LookupPTR(context.Background(), "198.51.100.1"); got != "" {
		t.Errorf("LookupPTR unknown = %q, want empty", got)
	}
	if got := r.LookupPTR(context.Background(), "not-an-ip"); got != "" {
		t.Errorf("LookupPTR invalid = %q, want empty", got)
	}
}

func TestResolver_UnreachableServer(t *testing.T) {
	r := NewResolver(200*time.Millisecond, []string{"127.0.0.1:1"}, nil)
	if got := r.ResolveChain(context.Background(), "www.example.com"); len(got) != 0 {
		t.Errorf("chain = %v, want empty", got)
	}
}

func TestClassifyDNSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"rcode nxdomain", &rcodeError{Rcode: dns.RcodeNameError}, "NXDOMAIN"},
		{"rcode servfail", &rcodeError{Rcode: dns.RcodeServerFailure}, "SERVFAIL"},
		{"net not found", &net.DNSError{Err: "no such host", IsNotFound: true}, "NXDOMAIN"},
		{"net other", &net.DNSError{Err: "timeout"}, "SERVFAIL"},
		{"string no such host", errors.New("lookup x: no such host"), "NXDOMAIN"},
		{"unrelated", errors.New("connection refused"), ""},
	}
	for _, tt := range tests {
		if got := classifyDNSError(tt.err); got != tt.want {
			t.Errorf("%s: classifyDNSError = %q, want %q", tt.name, got, tt.want)
		}
	}
}
