package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/shopmirror/internal/apply"
	"github.com/untoldecay/shopmirror/internal/ui"
)

var dropForce bool

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete data from the destination tenant",
}

var dropFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "Delete the destination's entire file library",
	Long: `Delete every file in the destination tenant's library.

Orphaned media from earlier experiments makes filename matching ambiguous;
dropping the library gives the next apply a clean slate. Deletion runs in
batches; a failed batch (files still referenced by resources) is logged
and the run continues.

This is destructive and cannot be undone. Interactive runs must type
"delete" to confirm; scripts pass --force.`,
	Args: cobra.NoArgs,
	RunE: runDropFiles,
}

func init() {
	dropFilesCmd.Flags().BoolVar(&dropForce, "force", false, "Skip the typed confirmation")
	dropCmd.AddCommand(dropFilesCmd)
	rootCmd.AddCommand(dropCmd)
}

func runDropFiles(cmd *cobra.Command, args []string) error {
	client, err := destClient()
	if err != nil {
		return err
	}

	if !dropForce {
		question := fmt.Sprintf("Delete every file in %s's library?", client.Domain)
		ok, err := ui.ConfirmTyped(question, "delete")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	stepf("deleting the file library of %s", client.Domain)
	st, err := apply.DropFiles(rootCtx, client)
	if err != nil {
		return err
	}
	if st.Failed > 0 {
		warnf("deleted %d of %d files, %d failed (still referenced?)", st.Deleted, st.Total, st.Failed)
		os.Exit(1)
	}
	donef("deleted %d files", st.Deleted)
	return nil
}
