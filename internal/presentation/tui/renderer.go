package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/gnueaj/SAE-vis-sub000/internal/alluvial"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"golang.org/x/term"
)

const defaultWidth = 100

// TerminalWidth returns the width of stdout, or a default when stdout is not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// NewRenderer returns a function that renders markdown using glamour.
// Styled output is only used on a terminal; pipes get the plain "notty" style.
func NewRenderer() (func(string) (string, error), error) {
	style := glamour.WithStandardStyle("notty")
	if term.IsTerminal(int(os.Stdout.Fd())) {
		style = glamour.WithAutoStyle() // Automatically detect light/dark background
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(TerminalWidth()))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// TreeMarkdown describes a tree as markdown: one section per split, one table row per child.
func TreeMarkdown(tree *domain.Tree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Tree `%s`\n\n", tree.ID)
	fmt.Fprintf(&sb, "%d nodes, %d leaves, %d items at the root.\n\n",
		len(tree.Nodes), len(tree.Leaves()), tree.Root().ItemCount)

	tree.Walk(func(n *domain.Node) {
		if n.IsLeaf() {
			return
		}
		fmt.Fprintf(&sb, "## `%s` (%s", n.ID, n.SplitRule.Type)
		if n.Spec != nil && n.Spec.Category != "" {
			fmt.Fprintf(&sb, ", %s", n.Spec.Category)
		}
		sb.WriteString(")\n\n")
		sb.WriteString("| Child | Condition | Items |\n|---|---|---:|\n")
		for _, id := range n.ChildrenIDs {
			child, ok := tree.Nodes[id]
			if !ok {
				continue
			}
			cond := ""
			if k := len(child.ParentPath); k > 0 {
				cond = child.ParentPath[k-1].Condition
			}
			fmt.Fprintf(&sb, "| `%s` | %s | %d |\n", id, escapeCell(cond), child.ItemCount)
		}
		if n.Bridge != nil {
			fmt.Fprintf(&sb, "\nPercentile bridge on `%s`: %v -> %v\n", n.Bridge.Metric, n.Bridge.Percentiles, n.Bridge.Thresholds)
		}
		sb.WriteString("\n")
	})
	return sb.String()
}

// FlowsMarkdown describes the flows between two trees as markdown.
func FlowsMarkdown(source, target string, flows []domain.AlluvialFlow) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Flows `%s` -> `%s`\n\n", source, target)
	if len(flows) == 0 {
		sb.WriteString("No overlapping items.\n")
		return sb.String()
	}
	sb.WriteString("| Source | Target | Items |\n|---|---|---:|\n")
	for _, f := range flows {
		fmt.Fprintf(&sb, "| `%s` | `%s` | %d |\n", f.SourceNodeID, f.TargetNodeID, f.Count)
	}
	s := alluvial.Summarize(flows)
	fmt.Fprintf(&sb, "\n%d flows carry %d items: %d within the same category, %d across categories.\n",
		s.Flows, s.Items, s.SameCategory, s.CrossCategory)
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
