// Package cli implements the cratesls command-line interface.
//
// The root command runs the language server over stdio; that is what
// editors spawn. Logging goes to stderr via charmbracelet/log and supports
// --verbose (-v) for debug-level output. An optional HTTP debug endpoint
// exposes cache and rate-limiter counters.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cratesls/internal/config"
	"github.com/matzehuels/cratesls/internal/debug"
	"github.com/matzehuels/cratesls/pkg/buildinfo"
	"github.com/matzehuels/cratesls/pkg/lsp"
	"github.com/matzehuels/cratesls/pkg/observability"
	"github.com/matzehuels/cratesls/pkg/registry"
)

// Execute runs the cratesls CLI and returns an error if the server fails.
// This is the main entry point for the application.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		configPath string
		debugAddr  string
	)

	root := &cobra.Command{
		Use:          "cratesls",
		Short:        "Language server for Cargo.toml dependency tables",
		Long:         `cratesls is a language server that resolves the dependencies of a Cargo.toml against crates.io and serves outdated-version diagnostics, version and feature completions, hovers and documentation links over LSP on stdio.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, debugAddr)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().StringVar(&debugAddr, "debug-addr", "", "serve debug counters on this address")

	return root.ExecuteContext(ctx)
}

// serve wires the resolution stack together and runs the language server
// on stdio until the client disconnects or ctx is cancelled.
func serve(ctx context.Context, configPath, debugAddr string) error {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debugAddr != "" {
		cfg.DebugAddr = debugAddr
	}

	if cfg.DebugAddr != "" {
		stats := debug.NewStats()
		observability.SetCacheHooks(stats)
		observability.SetRateHooks(stats)
		go debug.Serve(ctx, cfg.DebugAddr, stats, logger)
	}

	limiter := registry.NewLimiter(cfg.RateInterval.Duration)
	index := registry.NewIndexClient(cfg.IndexURL)
	api := registry.NewAPIClient(cfg.APIURL, limiter)
	cache := registry.NewCache(index, api, cfg.RetryCooldown.Duration)

	server := lsp.NewServer(cache, logger)

	logger.Info("cratesls starting",
		"version", buildinfo.Version,
		"index", cfg.IndexURL,
		"api", cfg.APIURL)

	return server.Run(ctx, lsp.Stdio())
}
