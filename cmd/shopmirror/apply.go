package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	shopmirror "github.com/untoldecay/shopmirror"
	"github.com/untoldecay/shopmirror/internal/apply"
	"github.com/untoldecay/shopmirror/internal/config"
	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/ui"
)

var (
	applyDir         string
	applyOnly        []string
	applyWorkers     int
	applySkipConfirm bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Replay a dump against the destination tenant",
	Long: `Replay a dump directory against the destination tenant.

Phases run in dependency order: files, products, collections, blogs,
articles, pages, then (after an index rebuild) metaobjects, metafields,
menus, redirects, policies, discounts, markets. Records match by natural
key, so re-running a partial or failed apply converges instead of
duplicating. Record failures are collected and reported; the run only
aborts on run-level problems.

Exit code is 1 when any record failed, 0 otherwise.

Examples:
  shopmirror apply                        # Replay ./dump
  shopmirror apply --only menus,redirects # Just two phases
  shopmirror apply --workers 8            # Wider mutation fan-out`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyDir, "dir", "", "Dump directory (default: dump-dir from config, else ./dump)")
	applyCmd.Flags().StringSliceVar(&applyOnly, "only", nil, "Apply only these phases")
	applyCmd.Flags().IntVar(&applyWorkers, "workers", 0,
		fmt.Sprintf("Per-phase mutation fan-out (default %d, max %d)", apply.DefaultWorkers, apply.MaxWorkers))
	applyCmd.Flags().BoolVar(&applySkipConfirm, "skip-confirm", false, "Apply without the interactive confirmation")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	client, err := destClient()
	if err != nil {
		return err
	}
	dir := dumpDirFor(applyDir)

	m, err := manifest.Read(dir)
	if err != nil {
		return fmt.Errorf("not a dump directory: %w", err)
	}
	if !applySkipConfirm {
		question := fmt.Sprintf("Apply %s (dumped from %s) to %s?", dir, m.SourceShop, client.Domain)
		if !ui.PromptYesNo(question, false) {
			fmt.Println("aborted")
			return nil
		}
	}

	release, err := dump.AcquireLock(dir, config.GetDuration("lock-timeout"))
	if err != nil {
		return err
	}
	defer release()

	pipe := apply.New(client, dir, shopmirror.Version)
	if applyWorkers > 0 {
		pipe.Workers = applyWorkers
	}
	if w := config.GetInt("concurrency"); applyWorkers == 0 && w > 0 {
		pipe.Workers = w
	}
	if len(applyOnly) > 0 {
		if err := pipe.Only(applyOnly); err != nil {
			return err
		}
	}

	stepf("applying %s to %s", dir, client.Domain)
	if len(applyOnly) > 0 {
		stepf("phases restricted to %s", strings.Join(applyOnly, ", "))
	}
	report, err := pipe.Run(rootCtx)
	if err != nil {
		return err
	}

	fmt.Println(report.Render(ui.Width()))
	if report.ExitCode() != 0 {
		warnf("%d records failed; the log has the full detail", report.FailedTotal())
		os.Exit(1)
	}
	donef("apply complete")
	return nil
}
