package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/untoldecay/shopmirror/internal/apply"
	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/ui"
)

var (
	defsDumpDir  string
	defsApplyDir string
)

var defsCmd = &cobra.Command{
	Use:   "defs",
	Short: "Mirror metafield and metaobject definitions",
	Long: `Mirror the schema layer: metaobject and metafield definitions.

Definitions are the only family apply does not create on the fly, because
metafield values written without a definition lose their type. Run
defs apply before the first full apply against a fresh destination.`,
}

var defsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the source tenant's definitions",
	Args:  cobra.NoArgs,
	RunE:  runDefsDump,
}

var defsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create missing definitions on the destination",
	Long: `Create the definitions the destination is missing.

Existing definitions are never modified and reserved namespaces are
skipped. Metaobject definitions land in two passes so definitions that
reference each other (or themselves) create cleanly in any order; the
reference validations are back-filled once every id is known.

Exit code is 1 when any definition failed, 0 otherwise.`,
	Args: cobra.NoArgs,
	RunE: runDefsApply,
}

func init() {
	defsDumpCmd.Flags().StringVar(&defsDumpDir, "dir", "", "Dump directory (default: dump-dir from config, else ./dump)")
	defsApplyCmd.Flags().StringVar(&defsApplyDir, "dir", "", "Dump directory (default: dump-dir from config, else ./dump)")
	defsCmd.AddCommand(defsDumpCmd)
	defsCmd.AddCommand(defsApplyCmd)
	rootCmd.AddCommand(defsCmd)
}

func runDefsDump(cmd *cobra.Command, args []string) error {
	client, err := sourceClient()
	if err != nil {
		return err
	}
	dir := dumpDirFor(defsDumpDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	stepf("dumping definitions from %s", client.Domain)
	defs, err := dump.DumpDefinitions(rootCtx, client, filepath.Join(dir, "definitions.json"))
	if err != nil {
		return err
	}
	donef("dumped %d metaobject and %d metafield definitions",
		len(defs.MetaobjectDefinitions), len(defs.MetafieldDefinitions))
	return nil
}

func runDefsApply(cmd *cobra.Command, args []string) error {
	client, err := destClient()
	if err != nil {
		return err
	}
	dir := dumpDirFor(defsApplyDir)

	stepf("applying definitions to %s", client.Domain)
	report, err := apply.ApplyDefinitions(rootCtx, client, dir)
	if err != nil {
		return err
	}

	fmt.Println(report.Render(ui.Width()))
	if report.ExitCode() != 0 {
		warnf("%d definitions failed; the log has the full detail", report.FailedTotal())
		os.Exit(1)
	}
	donef("definitions applied")
	return nil
}
