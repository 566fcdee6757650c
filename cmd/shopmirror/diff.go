package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/shopmirror/internal/apply"
	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/ui"
)

var diffDir string

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare a dump against the destination tenant",
	Long: `Compare a dump directory against the destination without changing it.

For every dumped family, reports how many records already have a
destination match by natural key and samples the keys that do not. A
clean diff after an apply means the next apply has nothing to create.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffDir, "dir", "", "Dump directory (default: dump-dir from config, else ./dump)")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	client, err := destClient()
	if err != nil {
		return err
	}
	dir := dumpDirFor(diffDir)

	m, err := manifest.Read(dir)
	if err != nil {
		return fmt.Errorf("not a dump directory: %w", err)
	}

	stepf("comparing %s against %s", dir, client.Domain)
	rows, err := apply.Diff(rootCtx, client, dir)
	if err != nil {
		return err
	}

	fmt.Println(ui.RenderDiffReport(m.SourceShop, client.Domain, rows, ui.Width()))
	return nil
}
