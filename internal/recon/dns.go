package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

const (
	cnameMaxHops = 5
	resolvConf   = "/etc/resolv.conf"
)

var fallbackNameservers = []string{"1.1.1.1:53", "8.8.8.8:53"}

// rcodeError is a non-success DNS response code.
type rcodeError struct {
	Rcode int
}

func (e *rcodeError) Error() string {
	return fmt.Sprintf("dns response %s", dns.RcodeToString[e.Rcode])
}

// Resolver implements engine.CNAMEResolver with direct queries to the
// configured nameservers. It also answers PTR lookups for the process
// monitor.
type Resolver struct {
	Servers []string
	Timeout time.Duration
	MaxHops int
	Log     logger.Logger

	client *dns.Client
}

// NewResolver returns a resolver for servers ("host:port"). With no servers
// it reads /etc/resolv.conf and falls back to public resolvers.
func NewResolver(timeout time.Duration, servers []string, log logger.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	if len(servers) == 0 {
		servers = systemNameservers(log)
	}
	return &Resolver{
		Servers: servers,
		Timeout: timeout,
		MaxHops: cnameMaxHops,
		Log:     log,
		client:  &dns.Client{Timeout: timeout},
	}
}

func systemNameservers(log logger.Logger) []string {
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil || len(cfg.Servers) == 0 {
		log.Debug("no system resolvers, using fallback", logger.Error(err))
		return fallbackNameservers
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}

// ResolveChain follows CNAME records from host, at most MaxHops deep. It
// stops at the first name without a CNAME, on NXDOMAIN, on any error, or
// when a record points back at itself.
func (r *Resolver) ResolveChain(ctx context.Context, host string) []string {
	var chain []string
	current := engine.NormalizeHost(host)

	for i := 0; i < r.MaxHops; i++ {
		next, err := r.lookupCNAME(ctx, current)
		if err != nil {
			if classifyDNSError(err) != "NXDOMAIN" {
				r.Log.Debug("cname lookup failed", logger.String("host", current), logger.Error(err))
			}
			break
		}
		if next == "" {
			break
		}
		chain = append(chain, next)
		if next == current {
			break
		}
		current = next
	}

	return chain
}

// LookupPTR returns the first PTR name for ip, or "".
func (r *Resolver) LookupPTR(ctx context.Context, ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}
	resp, err := r.exchange(ctx, arpa, dns.TypePTR)
	if err != nil {
		if classifyDNSError(err) != "NXDOMAIN" {
			r.Log.Debug("ptr lookup failed", logger.String("ip", ip), logger.Error(err))
		}
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return engine.NormalizeHost(ptr.Ptr)
		}
	}
	return ""
}

func (r *Resolver) lookupCNAME(ctx context.Context, host string) (string, error) {
	resp, err := r.exchange(ctx, host, dns.TypeCNAME)
	if err != nil {
		return "", err
	}
	owner := dns.Fqdn(host)
	for _, rr := range resp.Answer {
		if cn, ok := rr.(*dns.CNAME); ok && strings.EqualFold(cn.Hdr.Name, owner) {
			return engine.NormalizeHost(cn.Target), nil
		}
	}
	return "", nil
}

// exchange sends one recursive query, trying each server in turn until one
// answers. NXDOMAIN from any server is final.
func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.Servers {
		qctx, cancel := context.WithTimeout(ctx, r.Timeout)
		resp, _, err := r.client.ExchangeContext(qctx, msg, server)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("query %s: %w", server, err)
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, &rcodeError{Rcode: resp.Rcode}
		default:
			lastErr = &rcodeError{Rcode: resp.Rcode}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no nameservers configured")
	}
	return nil, lastErr
}

// classifyDNSError returns "NXDOMAIN" or "SERVFAIL" based on the DNS error type.
func classifyDNSError(err error) string {
	if err == nil {
		return ""
	}

	var rerr *rcodeError
	if errors.As(err, &rerr) {
		if rerr.Rcode == dns.RcodeNameError {
			return "NXDOMAIN"
		}
		return "SERVFAIL"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return "NXDOMAIN"
		}
		return "SERVFAIL"
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "no such host") {
		return "NXDOMAIN"
	}
	if strings.Contains(errStr, "server misbehaving") {
		return "SERVFAIL"
	}

	return ""
}
