package indicator

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// tempIDPrefix marks ids minted by the builder before the draft is persisted.
const tempIDPrefix = "tmp-"

// Store is the indicator tree of one builder session: a flat map keyed by
// temp id with parent back-references. A Store has a single owner and is not
// safe for concurrent use.
type Store struct {
	nodes            map[string]*IndicatorNode
	statuses         map[string]SchemaStatus
	governanceAreaID int
	version          int64

	selectedID string
	editingID  string

	newID func() string
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides how temp ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock overrides the time source used for lastEdited and archivedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty tree.
func NewStore(opts ...Option) *Store {
	s := &Store{
		newID: func() string { return tempIDPrefix + uuid.NewString() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset discards every node and returns the store to its freshly built state.
func (s *Store) Reset() {
	s.nodes = make(map[string]*IndicatorNode)
	s.statuses = make(map[string]SchemaStatus)
	s.governanceAreaID = 0
	s.version = 0
	s.selectedID = ""
	s.editingID = ""
}

// Len returns the number of nodes in the tree.
func (s *Store) Len() int { return len(s.nodes) }

// GovernanceAreaID returns the area whose id prefixes root codes.
func (s *Store) GovernanceAreaID() int { return s.governanceAreaID }

// Version returns the persistence token the tree was loaded with.
func (s *Store) Version() int64 { return s.version }

// SetGovernanceArea changes the root code prefix and recalculates codes.
func (s *Store) SetGovernanceArea(id int) {
	s.governanceAreaID = id
	s.RecalculateCodes()
}

// GetNodeByID returns a copy of the node with the given id.
func (s *Store) GetNodeByID(id string) (*IndicatorNode, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// GetChildrenOf returns copies of parentID's children in order. An empty
// parentID lists the roots.
func (s *Store) GetChildrenOf(parentID string) []*IndicatorNode {
	return cloneAll(s.children(parentID))
}

// GetSiblingsOf returns the other children of id's parent, in order.
func (s *Store) GetSiblingsOf(id string) []*IndicatorNode {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	var out []*IndicatorNode
	for _, sib := range s.children(n.ParentKey()) {
		if sib.TempID != id {
			out = append(out, sib.Clone())
		}
	}
	return out
}

// GetParentOf returns a copy of id's parent, or false for roots and unknown ids.
func (s *Store) GetParentOf(id string) (*IndicatorNode, bool) {
	n, ok := s.nodes[id]
	if !ok || n.IsRoot() {
		return nil, false
	}
	return s.GetNodeByID(n.ParentKey())
}

// GetAllNodes returns copies of every node in tree order (depth first,
// sibling order).
func (s *Store) GetAllNodes() []*IndicatorNode {
	return cloneAll(s.treeOrder())
}

// GetTreeView returns the nested projection of the tree.
func (s *Store) GetTreeView() []*TreeNode {
	index := s.childIndex()
	var build func(parent string) []*TreeNode
	build = func(parent string) []*TreeNode {
		kids := index[parent]
		out := make([]*TreeNode, 0, len(kids))
		for _, k := range kids {
			children := build(k.TempID)
			out = append(out, &TreeNode{
				IndicatorNode: *k.Clone(),
				IsLeaf:        len(children) == 0,
				Status:        s.statuses[k.TempID],
				Children:      children,
			})
		}
		return out
	}
	return build("")
}

// IsLeaf reports whether id has no children.
func (s *Store) IsLeaf(id string) bool {
	if _, ok := s.nodes[id]; !ok {
		return false
	}
	return !s.hasChildren(id)
}

// Select marks id as the selected node; an unknown id clears the selection.
func (s *Store) Select(id string) {
	if _, ok := s.nodes[id]; !ok {
		id = ""
	}
	s.selectedID = id
}

// Edit marks id as the node open in the editor; an unknown id clears it.
func (s *Store) Edit(id string) {
	if _, ok := s.nodes[id]; !ok {
		id = ""
	}
	s.editingID = id
}

// SelectedID returns the selected node id, or "".
func (s *Store) SelectedID() string { return s.selectedID }

// EditingID returns the id of the node open in the editor, or "".
func (s *Store) EditingID() string { return s.editingID }

// children returns the live children of parent sorted by order.
func (s *Store) children(parent string) []*IndicatorNode {
	var out []*IndicatorNode
	for _, n := range s.nodes {
		if n.ParentKey() == parent {
			out = append(out, n)
		}
	}
	sortSiblings(out)
	return out
}

func (s *Store) hasChildren(id string) bool {
	for _, n := range s.nodes {
		if n.ParentTempID != nil && *n.ParentTempID == id {
			return true
		}
	}
	return false
}

// childIndex groups live nodes by parent key, each group sorted by order.
func (s *Store) childIndex() map[string][]*IndicatorNode {
	index := make(map[string][]*IndicatorNode)
	for _, n := range s.nodes {
		index[n.ParentKey()] = append(index[n.ParentKey()], n)
	}
	for _, kids := range index {
		sortSiblings(kids)
	}
	return index
}

func (s *Store) treeOrder() []*IndicatorNode {
	index := s.childIndex()
	out := make([]*IndicatorNode, 0, len(s.nodes))
	var walk func(parent string)
	walk = func(parent string) {
		for _, k := range index[parent] {
			out = append(out, k)
			walk(k.TempID)
		}
	}
	walk("")
	return out
}

// subtree returns id and all of its transitive descendants.
func (s *Store) subtree(id string) []string {
	index := s.childIndex()
	out := []string{id}
	for i := 0; i < len(out); i++ {
		for _, k := range index[out[i]] {
			out = append(out, k.TempID)
		}
	}
	return out
}

// isAncestor reports whether ancestor appears on the parent chain of id.
func (s *Store) isAncestor(ancestor, id string) bool {
	cur, ok := s.nodes[id]
	for steps := 0; ok && steps <= len(s.nodes); steps++ {
		if cur.ParentTempID == nil {
			return false
		}
		if *cur.ParentTempID == ancestor {
			return true
		}
		cur, ok = s.nodes[*cur.ParentTempID]
	}
	return false
}

func sortSiblings(nodes []*IndicatorNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].TempID < nodes[j].TempID
	})
}

func renumber(nodes []*IndicatorNode) {
	for i, n := range nodes {
		n.Order = i + 1
	}
}

func cloneAll(nodes []*IndicatorNode) []*IndicatorNode {
	out := make([]*IndicatorNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Clone())
	}
	return out
}
