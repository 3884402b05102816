package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
)

const (
	// DefaultMonitorWindow is how long process connections are sampled.
	DefaultMonitorWindow = 30 * time.Second
	monitorPollInterval  = 5 * time.Second
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrNoConnections   = errors.New("no remote hosts observed for process")

	pidPattern = regexp.MustCompile(`^\d+$`)
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// PTRResolver maps an IP address to a hostname, "" when there is none.
type PTRResolver interface {
	LookupPTR(ctx context.Context, ip string) string
}

// ProcessMonitor samples the outbound connections of a local process and
// turns the remote addresses into seed hostnames.
type ProcessMonitor struct {
	Window   time.Duration
	Interval time.Duration
	GOOS     string
	Run      CommandRunner
	PTR      PTRResolver
	Log      logger.Logger
}

// NewProcessMonitor returns a monitor using the OS process tools.
func NewProcessMonitor(window time.Duration, ptr PTRResolver, log logger.Logger) *ProcessMonitor {
	if window <= 0 {
		window = DefaultMonitorWindow
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessMonitor{
		Window:   window,
		Interval: monitorPollInterval,
		GOOS:     runtime.GOOS,
		Run:      execCommand,
		PTR:      ptr,
		Log:      log,
	}
}

var _ engine.ConnectionMonitor = (*ProcessMonitor)(nil)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Observe runs Discover with a window of duration. A non-positive duration
// keeps the configured window.
func (m *ProcessMonitor) Observe(ctx context.Context, processName string, duration time.Duration) ([]string, error) {
	if duration > 0 {
		mm := *m
		mm.Window = duration
		return mm.Discover(ctx, processName)
	}
	return m.Discover(ctx, processName)
}

// Discover finds the PIDs of processName, samples their connections for the
// monitor window, and returns the reverse-resolved hostnames.
func (m *ProcessMonitor) Discover(ctx context.Context, processName string) ([]string, error) {
	pids, err := m.PIDs(ctx, processName)
	if err != nil {
		return nil, err
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrProcessNotFound, processName)
	}
	m.Log.Debug("process pids", logger.String("process", processName), logger.Strings("pids", pids))

	ips, err := m.RemoteIPs(ctx, pids)
	if err != nil {
		return nil, err
	}

	hosts := m.resolve(ctx, ips)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoConnections, processName)
	}
	return hosts, nil
}

// PIDs lists the process IDs matching processName.
func (m *ProcessMonitor) PIDs(ctx context.Context, processName string) ([]string, error) {
	if m.GOOS == "windows" {
		out, err := m.Run(ctx, "tasklist", "/svc", "/fi", "IMAGENAME eq "+processName, "/fo", "csv", "/nh")
		if err != nil {
			return nil, fmt.Errorf("tasklist: %w", err)
		}
		return parseTasklist(string(out)), nil
	}

	out, err := m.Run(ctx, "pgrep", "-f", processName)
	if err != nil {
		// pgrep exits 1 when nothing matches.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep: %w", err)
	}
	return parsePgrep(string(out)), nil
}

// RemoteIPs polls the connection table every Interval until Window has
// elapsed and returns the distinct remote IPv4 addresses owned by pids.
// Poll failures are logged and skipped.
func (m *ProcessMonitor) RemoteIPs(ctx context.Context, pids []string) ([]string, error) {
	want := make(map[string]bool, len(pids))
	for _, p := range pids {
		want[p] = true
	}

	seen := make(map[string]bool)
	var ips []string
	deadline := time.Now().Add(m.Window)

	for {
		for _, ip := range m.poll(ctx, want) {
			if !seen[ip] {
				seen[ip] = true
				ips = append(ips, ip)
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := m.Interval
		if wait <= 0 || wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ips, ctx.Err()
		case <-time.After(wait):
		}
	}

	return ips, nil
}

func (m *ProcessMonitor) poll(ctx context.Context, pids map[string]bool) []string {
	if m.GOOS == "windows" {
		out, err := m.Run(ctx, "netstat", "-ano")
		if err != nil {
			m.Log.Debug("netstat failed", logger.Error(err))
			return nil
		}
		return parseNetstat(string(out), pids)
	}

	out, err := m.Run(ctx, "lsof", "-i", "-P", "-n")
	if err != nil {
		m.Log.Debug("lsof failed", logger.Error(err))
		return nil
	}
	return parseLsof(string(out), pids)
}

func (m *ProcessMonitor) resolve(ctx context.Context, ips []string) []string {
	if m.PTR == nil {
		return nil
	}
	seen := make(map[string]bool)
	var hosts []string
	for _, ip := range ips {
		h := engine.NormalizeHost(m.PTR.LookupPTR(ctx, ip))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

func parsePgrep(out string) []string {
	var pids []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if pidPattern.MatchString(line) {
			pids = append(pids, line)
		}
	}
	return pids
}

// parseTasklist reads `tasklist /fo csv /nh` output: "image","pid",...
func parseTasklist(out string) []string {
	var pids []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) < 2 {
			continue
		}
		pid := strings.Trim(fields[1], `" `)
		if pidPattern.MatchString(pid) {
			pids = append(pids, pid)
		}
	}
	return pids
}

// parseLsof reads `lsof -i -P -n` output. The NAME column holds
// "local->remote" for connected sockets; only the remote side is used.
func parseLsof(out string, pids map[string]bool) []string {
	var ips []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 9 || !pids[fields[1]] {
			continue
		}
		name := fields[8]
		i := strings.Index(name, "->")
		if i < 0 {
			continue
		}
		if ip := remoteIPv4(name[i+2:]); ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

// parseNetstat reads `netstat -ano`: proto, local, remote, state, pid.
func parseNetstat(out string, pids map[string]bool) []string {
	var ips []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || !pids[fields[4]] {
			continue
		}
		if ip := remoteIPv4(fields[2]); ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

// remoteIPv4 returns the address of "ip:port" when it is a routable IPv4.
func remoteIPv4(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
