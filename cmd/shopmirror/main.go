package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "charm.land/log/v2"
	"github.com/spf13/cobra"

	"github.com/untoldecay/shopmirror/internal/config"
	"github.com/untoldecay/shopmirror/internal/logging"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/ui"
)

var (
	// rootCtx is cancelled on SIGINT/SIGTERM; every command threads it
	// through its blocking calls.
	rootCtx context.Context

	// rootLogger is built in PersistentPreRunE from config + flags.
	rootLogger *log.Logger

	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string
)

var rootCmd = &cobra.Command{
	Use:   "shopmirror",
	Short: "Mirror storefront data between Shopify tenants",
	Long: `shopmirror duplicates storefront data between Shopify tenants.

A run has three stages: dump pulls the source tenant into a directory of
JSONL artifacts, enrich annotates every cross-reference with its natural
key (the dump command runs it for you), and apply replays the directory
against a destination tenant. Apply matches records by natural key
(handles, SKUs, paths), so a re-run converges instead of duplicating.

Credentials come from the environment (SRC_SHOP_DOMAIN, SRC_ADMIN_TOKEN,
DST_SHOP_DOMAIN, DST_ADMIN_TOKEN) or a .shopmirror/config.yaml.

Examples:
  shopmirror dump                      # Dump the source tenant into ./dump
  shopmirror defs apply                # Mirror definitions first
  shopmirror apply                     # Replay ./dump onto the destination
  shopmirror diff                      # Compare ./dump against the destination
  shopmirror drop files --force        # Empty the destination file library`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitializeFrom(flagConfig); err != nil {
			return err
		}
		// Flags beat environment beats config file.
		if flagLogLevel != "" {
			config.Set("log.level", flagLogLevel)
		}
		if flagLogFormat != "" {
			config.Set("log.format", flagLogFormat)
		}
		if flagLogFile != "" {
			config.Set("log.file", flagLogFile)
		}
		logger, err := logging.New(os.Stderr, logging.Options{
			Level:  config.GetString("log.level"),
			Format: config.GetString("log.format"),
			File:   config.GetString("log.file"),
		})
		if err != nil {
			return err
		}
		rootLogger = logger
		ui.ApplyColorProfile()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: walk up for .shopmirror/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (pretty, structured)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Also log to this file (rotated)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// sourceClient builds the export-side client from configuration.
func sourceClient() (*shopify.Client, error) {
	shop, err := config.Source()
	if err != nil {
		return nil, err
	}
	return shopify.NewClient(shop.Domain, shop.Token, config.APIVersion()).WithLogger(rootLogger), nil
}

// destClient builds the import-side client from configuration.
func destClient() (*shopify.Client, error) {
	shop, err := config.Destination()
	if err != nil {
		return nil, err
	}
	return shopify.NewClient(shop.Domain, shop.Token, config.APIVersion()).WithLogger(rootLogger), nil
}

// dumpDirFor resolves a --dir flag against the configured default.
func dumpDirFor(flag string) string {
	if flag != "" {
		return flag
	}
	if dir := config.GetString("dump-dir"); dir != "" {
		return dir
	}
	return "dump"
}

// Progress glyphs decorate human-facing output only; piped output gets
// plain-text prefixes.

func stepf(format string, args ...any) {
	prefix := "-> "
	if ui.ShouldUseGlyphs() {
		prefix = ui.RenderAccent("→") + " "
	}
	fmt.Printf(prefix+format+"\n", args...)
}

func donef(format string, args ...any) {
	prefix := "ok "
	if ui.ShouldUseGlyphs() {
		prefix = ui.RenderPass("✓") + " "
	}
	fmt.Printf(prefix+format+"\n", args...)
}

func warnf(format string, args ...any) {
	prefix := "warning: "
	if ui.ShouldUseGlyphs() {
		prefix = ui.RenderWarn("⚠") + " "
	}
	fmt.Printf(prefix+format+"\n", args...)
}
