package graph

import (
	"fmt"
	"strings"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Highlight marks nodes whose item sets contain something of interest, e.g. one item.
	Highlight []string
	// Selected is the node being edited.
	Selected string
}

// GenerateMermaid produces a Mermaid flowchart of the tree, breadth-first.
// It applies semantic styling:
// - Root: ((Circle))
// - Split node: [Rectangle]
// - Leaf: ([Stadium])
// Edges carry the condition that admits the child.
func GenerateMermaid(tree *domain.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	tree.Walk(func(node *domain.Node) {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == tree.RootID:
			opener, closer = "((", "))"
		case node.IsLeaf():
			opener, closer = "([", "])"
		}

		label := fmt.Sprintf("%s <br/> %d items", node.ID, node.ItemCount)
		if node.Category != "" && node.ID != tree.RootID {
			label = fmt.Sprintf("%s <br/> %s: %d items", node.ID, node.Category, node.ItemCount)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, childID := range node.ChildrenIDs {
			child, ok := tree.Nodes[childID]
			if !ok {
				continue
			}
			arrow := "-->"
			if n := len(child.ParentPath); n > 0 && child.ParentPath[n-1].Condition != "" {
				// Escape double quotes in condition for Mermaid label
				safeCondition := strings.ReplaceAll(child.ParentPath[n-1].Condition, "\"", "'")
				arrow = fmt.Sprintf("-- \"%s\" -->", safeCondition)
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(childID)))
		}
	})

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef highlight fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Highlight {
			if _, ok := tree.Nodes[id]; !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s highlight;\n", safeID))
			}
		}
		if overlay.Selected != "" {
			sb.WriteString(fmt.Sprintf("    class %s selected;\n", sanitizeMermaidID(overlay.Selected)))
		}
	}

	return sb.String()
}

// ContainingItem lists the nodes whose item set holds id, for use as an overlay.
func ContainingItem(tree *domain.Tree, id int) []string {
	var out []string
	tree.Walk(func(n *domain.Node) {
		if n.ItemIDs.Contains(id) {
			out = append(out, n.ID)
		}
	})
	return out
}

// GenerateSankey renders flows between two trees as a Mermaid sankey diagram.
// Node names are prefixed with their tree ID because both trees may use the same leaf IDs.
func GenerateSankey(sourceTree, targetTree string, flows []domain.AlluvialFlow) string {
	var sb strings.Builder
	sb.WriteString("sankey-beta\n\n")
	for _, f := range flows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d\n",
			sankeyName(sourceTree, f.SourceNodeID),
			sankeyName(targetTree, f.TargetNodeID),
			f.Count))
	}
	return sb.String()
}

func sankeyName(treeID, nodeID string) string {
	name := treeID + ":" + nodeID
	if strings.ContainsAny(name, ",\"") {
		return "\"" + strings.ReplaceAll(name, "\"", "\"\"") + "\""
	}
	return name
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
