package domain

import "sort"

// RootID is the identifier of every tree's root node.
const RootID = "root"

// PathDescriptor records one split on the way from the root to a node.
type PathDescriptor struct {
	ParentID    string   `json:"parent_id"`
	RuleType    RuleType `json:"rule_type"`
	BranchIndex int      `json:"branch_index"`
	Condition   string   `json:"condition"`
}

// Node is one subgroup of the classification tree.
// A node without a SplitRule is a leaf ("unexpanded").
type Node struct {
	ID       string `json:"id"`
	Stage    int    `json:"stage"`
	Category string `json:"category,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	// ParentPath lists the splits from the root down to this node.
	ParentPath  []PathDescriptor `json:"parent_path,omitempty"`
	SplitRule   *SplitRule       `json:"split_rule,omitempty"`
	Spec        *StageConfig     `json:"spec,omitempty"`
	ChildrenIDs []string         `json:"children_ids,omitempty"`
	ItemIDs     ItemSet          `json:"item_ids"`
	ItemCount   int              `json:"item_count"`
	// Generation advances every time the node's children are replaced or removed.
	Generation uint64           `json:"generation"`
	Bridge     *ThresholdBridge `json:"bridge,omitempty"`
}

// IsLeaf reports whether the node has no split rule.
func (n *Node) IsLeaf() bool {
	return n.SplitRule == nil
}

// SetItems replaces the node's items and keeps ItemCount in sync.
func (n *Node) SetItems(items ItemSet) {
	n.ItemIDs = items
	n.ItemCount = items.Len()
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := *n
	out.ParentPath = append([]PathDescriptor(nil), n.ParentPath...)
	out.ChildrenIDs = append([]string(nil), n.ChildrenIDs...)
	out.ItemIDs = n.ItemIDs.Clone()
	if n.SplitRule != nil {
		out.SplitRule = n.SplitRule.Clone()
	}
	if n.Spec != nil {
		spec := *n.Spec
		spec.Split = n.Spec.Split.Clone()
		out.Spec = &spec
	}
	if n.Bridge != nil {
		out.Bridge = n.Bridge.Clone()
	}
	return &out
}

// Clone returns a deep copy of the rule. Condition ASTs are immutable and shared.
func (r *SplitRule) Clone() *SplitRule {
	out := *r
	if r.Range != nil {
		rr := *r.Range
		rr.Thresholds = append([]float64(nil), r.Range.Thresholds...)
		rr.ChildIDs = append([]string(nil), r.Range.ChildIDs...)
		out.Range = &rr
	}
	if r.Pattern != nil {
		pr := *r.Pattern
		pr.Metrics = append([]string(nil), r.Pattern.Metrics...)
		pr.Conditions = make(map[string]float64, len(r.Pattern.Conditions))
		for k, v := range r.Pattern.Conditions {
			pr.Conditions[k] = v
		}
		pr.Patterns = make([]PatternEntry, len(r.Pattern.Patterns))
		for i, p := range r.Pattern.Patterns {
			m := make(map[string]Level, len(p.Match))
			for k, v := range p.Match {
				m[k] = v
			}
			p.Match = m
			pr.Patterns[i] = p
		}
		out.Pattern = &pr
	}
	if r.Expression != nil {
		er := *r.Expression
		er.Branches = append([]ExpressionBranch(nil), r.Expression.Branches...)
		out.Expression = &er
	}
	return &out
}

// Tree is a classification tree keyed by node ID with a single root.
type Tree struct {
	ID     string           `json:"id"`
	RootID string           `json:"root_id"`
	Nodes  map[string]*Node `json:"nodes"`
	// Sealed holds the encrypted tree when it was stored through an encrypting store.
	// Nodes is empty in that case.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewTree creates a tree holding only an empty root.
func NewTree(id string) *Tree {
	return &Tree{
		ID:     id,
		RootID: RootID,
		Nodes: map[string]*Node{
			RootID: {ID: RootID, Stage: 0, ItemIDs: NewItemSet()},
		},
	}
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.Nodes[t.RootID]
}

// Node looks up a node by ID.
func (t *Tree) Node(id string) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, &InvalidStateError{NodeID: id, Reason: "unknown node", Err: ErrNodeNotFound}
	}
	return n, nil
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{ID: t.ID, RootID: t.RootID, Nodes: make(map[string]*Node, len(t.Nodes))}
	for id, n := range t.Nodes {
		out.Nodes[id] = n.Clone()
	}
	out.Sealed = append([]byte(nil), t.Sealed...)
	return out
}

// Walk visits the nodes reachable from the root breadth-first, children in declared order.
// Each node is visited at most once even if the structure were cyclic.
func (t *Tree) Walk(fn func(*Node)) {
	t.walkFrom(t.RootID, fn)
}

func (t *Tree) walkFrom(start string, fn func(*Node)) {
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n, ok := t.Nodes[id]
		if !ok {
			continue
		}
		fn(n)
		queue = append(queue, n.ChildrenIDs...)
	}
}

// Descendants returns the IDs of every node below id, breadth-first, excluding id itself.
func (t *Tree) Descendants(id string) []string {
	var out []string
	t.walkFrom(id, func(n *Node) {
		if n.ID != id {
			out = append(out, n.ID)
		}
	})
	return out
}

// Leaves returns the reachable leaves in breadth-first order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	t.Walk(func(n *Node) {
		if n.IsLeaf() {
			out = append(out, n)
		}
	})
	return out
}

// Validate checks the structural invariants: every child's items are a subset of its
// parent's, and every expanded node's children match its rule's declared children.
func (t *Tree) Validate() error {
	var errs []error
	if _, ok := t.Nodes[t.RootID]; !ok {
		return &InvalidStateError{NodeID: t.RootID, Reason: "missing root", Err: ErrNodeNotFound}
	}
	t.Walk(func(n *Node) {
		if n.SplitRule != nil {
			declared := n.SplitRule.ChildIDs()
			if !sameStrings(declared, n.ChildrenIDs) {
				errs = append(errs, &InvalidStateError{NodeID: n.ID, Reason: "children do not match split rule"})
			}
		} else if len(n.ChildrenIDs) > 0 {
			errs = append(errs, &InvalidStateError{NodeID: n.ID, Reason: "leaf has children"})
		}
		for _, cid := range n.ChildrenIDs {
			child, ok := t.Nodes[cid]
			if !ok {
				errs = append(errs, &InvalidStateError{NodeID: cid, Reason: "dangling child of " + n.ID, Err: ErrNodeNotFound})
				continue
			}
			if !child.ItemIDs.IsSubsetOf(n.ItemIDs) {
				errs = append(errs, &InvalidStateError{NodeID: cid, Reason: "items not a subset of parent " + n.ID})
			}
			if child.ItemCount != child.ItemIDs.Len() {
				errs = append(errs, &InvalidStateError{NodeID: cid, Reason: "item count out of sync"})
			}
		}
	})
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// NodeIDs returns every node ID in ascending order.
func (t *Tree) NodeIDs() []string {
	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
