package domain

// AlluvialFlow is a weighted edge between a leaf of one tree and a leaf of another.
// Count is the size of the intersection of their item sets and is always positive.
type AlluvialFlow struct {
	SourceNodeID   string `json:"source_node_id"`
	TargetNodeID   string `json:"target_node_id"`
	Count          int    `json:"count"`
	SourceCategory string `json:"source_category,omitempty"`
	TargetCategory string `json:"target_category,omitempty"`
}

// SameCategory reports whether both ends carry the same category tag.
func (f AlluvialFlow) SameCategory() bool {
	return f.SourceCategory == f.TargetCategory
}

// FlatNode is the rendering-oriented view of a Node.
type FlatNode struct {
	ID        string `json:"id"`
	Stage     int    `json:"stage"`
	ItemCount int    `json:"item_count"`
	Category  string `json:"category,omitempty"`
	MemberIDs []int  `json:"member_ids"`
}

// FlatLink connects a parent to a child, weighted by the child's item count.
type FlatLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

// FlatTree is the {nodes, links} projection consumed by layout collaborators.
type FlatTree struct {
	Nodes []FlatNode `json:"nodes"`
	Links []FlatLink `json:"links"`
}

// Flatten projects the tree breadth-first into nodes and parent-child links.
func (t *Tree) Flatten() *FlatTree {
	out := &FlatTree{Nodes: []FlatNode{}, Links: []FlatLink{}}
	t.Walk(func(n *Node) {
		out.Nodes = append(out.Nodes, FlatNode{
			ID:        n.ID,
			Stage:     n.Stage,
			ItemCount: n.ItemCount,
			Category:  n.Category,
			MemberIDs: n.ItemIDs.Sorted(),
		})
		for _, cid := range n.ChildrenIDs {
			if child, ok := t.Nodes[cid]; ok {
				out.Links = append(out.Links, FlatLink{Source: n.ID, Target: cid, Value: child.ItemCount})
			}
		}
	})
	return out
}
