package main

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/config"
	"github.com/gnueaj/SAE-vis-sub000/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every tree declared in the project file",
	Long: `Builds the trees listed under "trees" in the project file, replacing stored trees
with the same ID, and prints a summary of each one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		built := rt.Config.TreeNames()
		if rt.Config.Store.Kind != config.StoreMemory {
			if built, err = rt.BuildTrees(ctx); err != nil {
				return err
			}
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if quiet {
			for _, id := range built {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}

		tui.PrintBanner(cmd.OutOrStdout(), saevis.Version)
		render, err := tui.NewRenderer()
		if err != nil {
			return err
		}
		for _, id := range built {
			tree, err := rt.Engine.Tree(ctx, id)
			if err != nil {
				return err
			}
			out, err := render(tui.TreeMarkdown(tree))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolP("quiet", "q", false, "Only print the IDs of the built trees")
}
