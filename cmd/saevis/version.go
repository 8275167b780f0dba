package main

import (
	"fmt"
	"strings"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of saevis",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "saevis version %s\n", strings.TrimSpace(saevis.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
