package graph_test

import (
	"strings"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/internal/presentation/graph"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

func sampleTree() *domain.Tree {
	tree := domain.NewTree("t")
	root := tree.Root()
	root.SetItems(domain.NewItemSet(1, 2, 3))
	root.ChildrenIDs = []string{"root_m_0", "root_m_1"}
	root.SplitRule = &domain.SplitRule{Type: domain.RuleRange}

	low := &domain.Node{ID: "root_m_0", Stage: 1, ParentID: "root", Category: "q",
		ParentPath: []domain.PathDescriptor{{ParentID: "root", Condition: "m < 0.5"}}}
	low.SetItems(domain.NewItemSet(1))
	high := &domain.Node{ID: "root_m_1", Stage: 1, ParentID: "root", Category: "q",
		ParentPath: []domain.PathDescriptor{{ParentID: "root", Condition: `source == "a-b"`}}}
	high.SetItems(domain.NewItemSet(2, 3))
	tree.Nodes[low.ID] = low
	tree.Nodes[high.ID] = high
	return tree
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes",
			contains: []string{
				`root(("root <br/> 3 items"))`,
				`root_m_0(["root_m_0 <br/> q: 1 items"])`,
			},
		},
		{
			name: "Edge Conditions",
			contains: []string{
				`root -- "m < 0.5" --> root_m_0`,
				`root -- "source == 'a-b'" --> root_m_1`,
			},
		},
		{
			name:    "Overlay",
			overlay: &graph.GraphOverlay{Highlight: []string{"root", "root_m_1", "root_m_1", "gone"}, Selected: "root"},
			contains: []string{
				"class root highlight;",
				"class root_m_1 highlight;",
				"class root selected;",
			},
			excludes: []string{"class gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(sampleTree(), tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, bad)
				}
			}
			if strings.Count(got, "class root_m_1 highlight;") > 1 {
				t.Errorf("highlight classes must be deduplicated:\n%v", got)
			}
		})
	}
}

func TestContainingItem(t *testing.T) {
	got := graph.ContainingItem(sampleTree(), 2)
	if strings.Join(got, ",") != "root,root_m_1" {
		t.Errorf("ContainingItem() = %v", got)
	}
}

func TestGenerateSankey(t *testing.T) {
	got := graph.GenerateSankey("a", "b,c", []domain.AlluvialFlow{
		{SourceNodeID: "root_m_0", TargetNodeID: "root_x_1", Count: 4},
	})
	want := "sankey-beta\n\na:root_m_0,\"b,c:root_x_1\",4\n"
	if got != want {
		t.Errorf("GenerateSankey() = %q, want %q", got, want)
	}
}
