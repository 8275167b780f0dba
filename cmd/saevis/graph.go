package main

import (
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <tree>",
	Short: "Export a tree as a Mermaid flowchart",
	Long: `Outputs a Mermaid diagram (graph TD) of the tree. --item highlights every node
containing that feature; --select marks one node.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		tree, err := rt.Engine.Tree(ctx, args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		selected, _ := cmd.Flags().GetString("select")
		if cmd.Flags().Changed("item") || selected != "" {
			overlay = &graph.GraphOverlay{Selected: selected}
			if cmd.Flags().Changed("item") {
				item, _ := cmd.Flags().GetInt("item")
				overlay.Highlight = graph.ContainingItem(tree, item)
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(tree, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Int("item", 0, "Highlight the nodes containing this feature ID")
	graphCmd.Flags().String("select", "", "Mark this node as selected")
}
