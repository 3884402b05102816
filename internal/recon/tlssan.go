package recon

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/vulnverified/orbit/internal/logger"
)

// SANReader implements engine.SANReader with a TLS handshake on port 443.
// Certificates are not verified.
type SANReader struct {
	Timeout time.Duration
	Port    string
	Log     logger.Logger
}

// NewSANReader returns a reader dialing port 443.
func NewSANReader(timeout time.Duration, log logger.Logger) *SANReader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SANReader{Timeout: timeout, Port: "443", Log: log}
}

// ReadSANs returns the lowercased, deduplicated DNS SANs of the leaf
// certificate served for host. Empty on any failure.
func (s *SANReader) ReadSANs(ctx context.Context, host string) []string {
	dialer := &net.Dialer{Timeout: s.Timeout}
	d := &tls.Dialer{
		NetDialer: dialer,
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		},
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(host, s.Port))
	if err != nil {
		s.Log.Debug("tls dial failed", logger.String("host", host), logger.Error(err))
		return nil
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, name := range state.PeerCertificates[0].DNSNames {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
