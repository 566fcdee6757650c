package main

import (
	"github.com/spf13/cobra"

	"github.com/untoldecay/shopmirror/internal/config"
	"github.com/untoldecay/shopmirror/internal/dump"
)

var enrichDir string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Re-run the reference annotation pass over a dump",
	Long: `Annotate every cross-reference in a dump with its natural key.

The dump command already runs this pass; enrich exists to repair a dump
whose run was interrupted, or to re-annotate after hand-editing artifacts.
The pass is idempotent: annotations are only added where missing, and
running it twice leaves the files byte-identical.`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringVar(&enrichDir, "dir", "", "Dump directory (default: dump-dir from config, else ./dump)")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	dir := dumpDirFor(enrichDir)

	release, err := dump.AcquireLock(dir, config.GetDuration("lock-timeout"))
	if err != nil {
		return err
	}
	defer release()

	stepf("annotating references in %s", dir)
	n, err := dump.Enrich(dir, rootLogger)
	if err != nil {
		return err
	}
	donef("annotated %d references", n)
	return nil
}
