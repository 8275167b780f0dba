package main

import (
	"encoding/json"
	"fmt"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/presentation/graph"
	"github.com/gnueaj/SAE-vis-sub000/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var flowCmd = &cobra.Command{
	Use:   "flow <source-tree> <target-tree>",
	Short: "Show the flows between the leaves of two trees",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		flows, err := rt.Engine.Flows(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"flows": flows, "summary": saevis.SummarizeFlows(flows)})
		case "mermaid":
			fmt.Fprint(out, graph.GenerateSankey(args[0], args[1], flows))
			return nil
		case "markdown":
			render, err := tui.NewRenderer()
			if err != nil {
				return err
			}
			text, err := render(tui.FlowsMarkdown(args[0], args[1], flows))
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			return nil
		default:
			return fmt.Errorf("unknown format %q (supported: markdown, mermaid, json)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(flowCmd)
	flowCmd.Flags().StringP("format", "f", "markdown", "Output format: markdown, mermaid or json")
}
