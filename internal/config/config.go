// Package config loads orbit settings from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/pkg/suffix"
)

type CrawlConfig struct {
	MaxPages          int           `yaml:"max_pages"`
	Concurrency       int           `yaml:"concurrency"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`
}

type EnrichmentConfig struct {
	SANTargets   int      `yaml:"tls_san_targets"`
	CNAMETargets int      `yaml:"cname_targets"`
	CNAMEMaxHops int      `yaml:"cname_max_hops"`
	CTMaxNames   int      `yaml:"ct_max_names"`
	Nameservers  []string `yaml:"nameservers"`
	CrtshURL     string   `yaml:"crtsh_url"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	Pretty bool   `yaml:"pretty"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Config struct {
	Crawl      CrawlConfig       `yaml:"crawl"`
	Enrichment EnrichmentConfig  `yaml:"enrichment"`
	Weights    engine.Weights    `yaml:"weights"`
	Classifier engine.Heuristics `yaml:"classifier"`
	SuffixMode suffix.Mode       `yaml:"suffix_mode"`
	Cache      CacheConfig       `yaml:"cache"`
	Log        LogConfig         `yaml:"log"`
	Server     ServerConfig      `yaml:"server"`
}

// Default returns the built-in settings.
func Default() *Config {
	def := engine.DefaultConfig()
	return &Config{
		Crawl: CrawlConfig{
			MaxPages:    def.MaxPages,
			Concurrency: def.Concurrency,
			Timeout:     8 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			SANTargets:   def.SANTargets,
			CNAMETargets: def.CNAMETargets,
			CNAMEMaxHops: def.CNAMEMaxHops,
			CTMaxNames:   def.CTMaxNames,
		},
		Weights:    def.Weights,
		Classifier: def.Heuristics,
		SuffixMode: suffix.ModeApprox,
		Cache: CacheConfig{
			TTL: 6 * time.Hour,
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getenv("ORBIT_LOG_LEVEL", c.Log.Level)
	c.Cache.RedisAddr = getenv("ORBIT_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getenv("ORBIT_REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getenvInt("ORBIT_REDIS_DB", c.Cache.RedisDB)
	c.Server.Listen = getenv("ORBIT_LISTEN", c.Server.Listen)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Crawl.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("crawl.max_pages must be > 0, got %d", c.Crawl.MaxPages))
	}
	if c.Crawl.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("crawl.concurrency must be > 0, got %d", c.Crawl.Concurrency))
	}
	if c.Crawl.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("crawl.timeout must be > 0, got %v", c.Crawl.Timeout))
	}
	if c.Crawl.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("crawl.requests_per_second must be >= 0, got %v", c.Crawl.RequestsPerSecond))
	}
	for name, v := range map[string]int{
		"enrichment.tls_san_targets": c.Enrichment.SANTargets,
		"enrichment.cname_targets":   c.Enrichment.CNAMETargets,
		"enrichment.cname_max_hops":  c.Enrichment.CNAMEMaxHops,
		"enrichment.ct_max_names":    c.Enrichment.CTMaxNames,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", name, v))
		}
	}
	for reason, w := range c.Weights {
		if !engine.IsKnownReason(reason) {
			errs = append(errs, fmt.Errorf("weights: unknown reason %q", reason))
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("weights.%s must be >= 0, got %d", reason, w))
		}
	}
	for _, r := range c.Classifier.StrongReasons {
		if !engine.IsKnownReason(r) {
			errs = append(errs, fmt.Errorf("classifier.strong_reasons: unknown reason %q", r))
		}
	}
	if c.Classifier.FrequencyThreshold <= 0 {
		errs = append(errs, fmt.Errorf("classifier.frequency_threshold must be > 0, got %d", c.Classifier.FrequencyThreshold))
	}
	if _, err := suffix.ForMode(c.SuffixMode); err != nil {
		errs = append(errs, err)
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0, got %v", c.Server.ShutdownTimeout))
	}
	if c.Cache.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("cache.redis_db must be >= 0, got %d", c.Cache.RedisDB))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// EngineConfig builds the engine settings for seeds.
func (c *Config) EngineConfig(seeds []string) (engine.Config, error) {
	site, err := suffix.ForMode(c.SuffixMode)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Seeds:        seeds,
		MaxPages:     c.Crawl.MaxPages,
		Concurrency:  c.Crawl.Concurrency,
		SANTargets:   c.Enrichment.SANTargets,
		CNAMETargets: c.Enrichment.CNAMETargets,
		CNAMEMaxHops: c.Enrichment.CNAMEMaxHops,
		CTMaxNames:   c.Enrichment.CTMaxNames,
		Weights:      c.Weights,
		Heuristics:   c.Classifier,
		Site:         site,
	}, nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
