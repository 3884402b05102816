package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnverified/orbit/internal/cache"
	"github.com/vulnverified/orbit/internal/config"
	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
	"github.com/vulnverified/orbit/internal/output"
	"github.com/vulnverified/orbit/internal/recon"
	"github.com/vulnverified/orbit/pkg/suffix"
)

// discoverFlags are shared by the seed and process commands.
type discoverFlags struct {
	configPath  string
	maxPages    int
	concurrency int
	timeout     time.Duration
	rate        float64
	suffixMode  string

	jsonOutput  bool
	treeOutput  bool
	tableOutput bool
	xlsxPath    string
	noColor     bool
	silent      bool
	verbose     bool

	redisAddr     string
	redisPassword string
	redisDB       int
}

func (f *discoverFlags) register(cmd *cobra.Command) {
	def := config.Default()
	fs := cmd.Flags()

	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.IntVar(&f.maxPages, "max-pages", def.Crawl.MaxPages, "Page budget per seed")
	fs.IntVar(&f.concurrency, "concurrency", def.Crawl.Concurrency, "Max concurrent fetches")
	fs.DurationVar(&f.timeout, "timeout", def.Crawl.Timeout, "Per-request timeout")
	fs.Float64Var(&f.rate, "rate", 0, "Max page fetches per second (0 = unlimited)")
	fs.StringVar(&f.suffixMode, "suffix-mode", string(def.SuffixMode), "Registrable-domain rule: approx or psl")

	fs.BoolVar(&f.jsonOutput, "json", false, "Output structured JSON to stdout")
	fs.BoolVar(&f.treeOutput, "tree", false, "Print the per-seed discovery tree")
	fs.BoolVar(&f.tableOutput, "table", false, "Print a score table with reasons")
	fs.StringVar(&f.xlsxPath, "xlsx", "", "Also write an XLSX workbook to this path")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable terminal colors")
	fs.BoolVar(&f.silent, "silent", false, "Results only, no progress")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose progress and debug logging")

	fs.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for the CT response cache")
	fs.StringVar(&f.redisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&f.redisDB, "redis-db", 0, "Redis database number")
}

// loadConfig reads the config file and lets explicitly set flags override
// it.
func (f *discoverFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("max-pages") {
		cfg.Crawl.MaxPages = f.maxPages
	}
	if changed("concurrency") {
		cfg.Crawl.Concurrency = f.concurrency
	}
	if changed("timeout") {
		cfg.Crawl.Timeout = f.timeout
	}
	if changed("rate") {
		cfg.Crawl.RequestsPerSecond = f.rate
	}
	if changed("suffix-mode") {
		cfg.SuffixMode = suffix.Mode(f.suffixMode)
	}
	if changed("redis-addr") {
		cfg.Cache.RedisAddr = f.redisAddr
	}
	if changed("redis-password") {
		cfg.Cache.RedisPassword = f.redisPassword
	}
	if changed("redis-db") {
		cfg.Cache.RedisDB = f.redisDB
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runEnv is everything a discovery needs besides its seeds.
type runEnv struct {
	cfg      *config.Config
	log      logger.Logger
	cache    cache.Cache
	adapters engine.Adapters
}

func (e *runEnv) close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	_ = e.log.Sync()
}

func (f *discoverFlags) setup(ctx context.Context, cmd *cobra.Command) (*runEnv, error) {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		f.noColor = true
	}

	cfg, err := f.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty && !f.noColor)

	env := &runEnv{cfg: cfg, log: log}
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, log)
		if err != nil {
			// The cache is optional; discovery proceeds uncached.
			log.Warn("redis cache disabled", logger.Error(err))
		} else {
			env.cache = rc
		}
	}

	env.adapters = recon.NewAdapters(adapterOptions(cfg, env.cache, log))
	return env, nil
}

func adapterOptions(cfg *config.Config, c cache.Cache, log logger.Logger) recon.Options {
	ua := cfg.Crawl.UserAgent
	if ua == "" {
		ua = fmt.Sprintf("orbit/%s (+https://github.com/vulnverified/orbit)", version)
	}
	return recon.Options{
		Timeout:           cfg.Crawl.Timeout,
		UserAgent:         ua,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		Nameservers:       cfg.Enrichment.Nameservers,
		Cache:             c,
		CacheTTL:          cfg.Cache.TTL,
		CrtshURL:          cfg.Enrichment.CrtshURL,
		Log:               log,
	}
}

// write emits the selected formats. JSON replaces the human formats; the
// default is one host per line.
func (f *discoverFlags) write(w io.Writer, result *engine.Result) error {
	if f.xlsxPath != "" {
		if err := output.WriteXLSX(f.xlsxPath, result); err != nil {
			return err
		}
	}

	if f.jsonOutput {
		return output.WriteJSON(w, result)
	}

	if !f.treeOutput && !f.tableOutput {
		output.WriteList(w, result)
	}
	if f.treeOutput {
		output.WriteTree(w, result, f.noColor)
	}
	if f.tableOutput {
		output.WriteTable(w, result, f.noColor)
	}
	if !f.silent && (f.treeOutput || f.tableOutput) {
		output.WriteSummary(w, result, f.noColor)
	}
	return nil
}
