package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vulnverified/orbit/internal/engine"
	"github.com/vulnverified/orbit/internal/output"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	output.Version = version

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &discoverFlags{}

	rootCmd := &cobra.Command{
		Use:   "orbit <domain> [domain...]",
		Short: "Find the hosts that belong to a website",
		Long: "Related-host discovery: follows redirects, crawls the site, reads TLS certificates, " +
			"CNAME chains and Certificate Transparency logs, and ranks every host by evidence.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runDiscovery(ctx, cmd, f, args, "")
		},
	}

	f.register(rootCmd)

	rootCmd.AddCommand(newProcCmd(), newServeCmd())

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("orbit {{.Version}}\n")
	return rootCmd
}

// signalContext is cancelled on the first Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// runDiscovery loads settings, runs the engine over seeds and writes the
// selected output formats.
func runDiscovery(ctx context.Context, cmd *cobra.Command, f *discoverFlags, seeds []string, seedReason engine.Reason) error {
	env, err := f.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.close()

	ecfg, err := env.cfg.EngineConfig(seeds)
	if err != nil {
		return err
	}
	ecfg.SeedReason = seedReason

	showProgress := !f.jsonOutput && !f.silent
	progress := output.NewProgress(os.Stderr, f.verbose, !showProgress)
	if showProgress {
		output.WriteHeader(os.Stderr, f.noColor)
	}

	result, err := engine.Run(ctx, ecfg, env.adapters, progress)
	if err != nil {
		return err
	}
	if showProgress {
		progress.Complete()
	}

	return f.write(os.Stdout, result)
}
