package main

import (
	"fmt"

	"github.com/spf13/cobra"

	shopmirror "github.com/untoldecay/shopmirror"
	"github.com/untoldecay/shopmirror/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the tool version and pinned API version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shopmirror %s (admin API %s)\n", shopmirror.Version, config.APIVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
