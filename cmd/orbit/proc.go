package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/logger"
	"github.com/vulnverified/orbit/internal/recon"
)

func newProcCmd() *cobra.Command {
	f := &discoverFlags{}
	var monitorTime time.Duration

	cmd := &cobra.Command{
		Use:   "proc <process-name>",
		Short: "Seed discovery from the remote hosts a local process talks to",
		Long: "Watches the outbound connections of a running process, reverse-resolves the peers " +
			"and runs discovery with every resolved hostname as a seed.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Pretty && !f.noColor)
			defer func() { _ = log.Sync() }()

			resolver := recon.NewResolver(cfg.Crawl.Timeout, cfg.Enrichment.Nameservers, log.With(logger.String("adapter", "dns")))
			var monitor engine.ConnectionMonitor = recon.NewProcessMonitor(monitorTime, resolver, log.With(logger.String("adapter", "process")))

			if !f.silent && !f.jsonOutput {
				fmt.Fprintf(os.Stderr, "Monitoring %s for %s...\n", args[0], monitorTime)
			}
			seeds, err := monitor.Observe(ctx, args[0], monitorTime)
			if err != nil {
				return err
			}
			if !f.silent && !f.jsonOutput {
				fmt.Fprintf(os.Stderr, "Observed %d remote hosts\n", len(seeds))
			}

			return runDiscovery(ctx, cmd, f, seeds, engine.ReasonProcessConnection)
		},
	}

	f.register(cmd)
	cmd.Flags().DurationVar(&monitorTime, "monitor-time", recon.DefaultMonitorWindow, "How long to watch the process connections")
	return cmd
}
