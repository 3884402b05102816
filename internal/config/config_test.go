package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/pkg/suffix"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orbit.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Crawl.MaxPages != 12 || cfg.Crawl.Concurrency != 4 {
		t.Errorf("crawl = %+v", cfg.Crawl)
	}
	if cfg.Crawl.Timeout != 8*time.Second {
		t.Errorf("timeout = %v, want 8s", cfg.Crawl.Timeout)
	}
	if cfg.SuffixMode != suffix.ModeApprox {
		t.Errorf("suffix mode = %q", cfg.SuffixMode)
	}
	if cfg.Weights[engine.ReasonRedirectTarget] != 8 {
		t.Errorf("redirect-target weight = %d", cfg.Weights[engine.ReasonRedirectTarget])
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
crawl:
  max_pages: 30
  timeout: 15s
  requests_per_second: 2.5
enrichment:
  nameservers: ["127.0.0.1:5353"]
weights:
  ct-log: 1
classifier:
  frequency_threshold: 5
  negative_suffixes: ["tracker.example"]
suffix_mode: psl
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Crawl.MaxPages != 30 || cfg.Crawl.Timeout != 15*time.Second || cfg.Crawl.RequestsPerSecond != 2.5 {
		t.Errorf("crawl = %+v", cfg.Crawl)
	}
	// Untouched fields keep their defaults.
	if cfg.Crawl.Concurrency != 4 {
		t.Errorf("concurrency = %d, want default 4", cfg.Crawl.Concurrency)
	}
	if cfg.Weights[engine.ReasonCTLog] != 1 {
		t.Errorf("ct-log weight = %d, want 1", cfg.Weights[engine.ReasonCTLog])
	}
	if cfg.Weights[engine.ReasonCanonical] != 7 {
		t.Errorf("canonical weight = %d, want default 7", cfg.Weights[engine.ReasonCanonical])
	}
	if cfg.Classifier.FrequencyThreshold != 5 || len(cfg.Classifier.NegativeSuffixes) != 1 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}

	ec, err := cfg.EngineConfig([]string{"example.com"})
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if ec.MaxPages != 30 || ec.Heuristics.FrequencyThreshold != 5 {
		t.Errorf("engine config = %+v", ec)
	}
	if got := ec.Site("shop.example.com.pl"); got != "example.com.pl" {
		t.Errorf("psl site = %q, want example.com.pl", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORBIT_LOG_LEVEL", "error")
	t.Setenv("ORBIT_REDIS_ADDR", "redis:6379")
	t.Setenv("ORBIT_REDIS_DB", "3")
	t.Setenv("ORBIT_LISTEN", ":9090")

	path := writeConfig(t, "log:\n  level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log level = %q, want env value", cfg.Log.Level)
	}
	if cfg.Cache.RedisAddr != "redis:6379" || cfg.Cache.RedisDB != 3 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad yaml", "crawl: [", "parse config"},
		{"zero pages", "crawl:\n  max_pages: 0\n", "crawl.max_pages"},
		{"negative rate", "crawl:\n  requests_per_second: -1\n", "requests_per_second"},
		{"unknown weight", "weights:\n  gut-feeling: 4\n", "unknown reason"},
		{"unknown strong reason", "classifier:\n  strong_reasons: [vibes]\n", "strong_reasons"},
		{"unknown suffix mode", "suffix_mode: exact\n", "unknown suffix mode"},
		{"bad duration", "crawl:\n  timeout: soon\n", "parse config"},
		{"zero shutdown timeout", "server:\n  shutdown_timeout: 0s\n", "server.shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
