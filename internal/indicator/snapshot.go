package indicator

// Snapshot is the plain form of a tree exchanged with persistence. Version is
// an opaque token the tree carries through without ever advancing it.
type Snapshot struct {
	Nodes            []*IndicatorNode `json:"nodes"`
	RootIDs          []string         `json:"rootIds"`
	GovernanceAreaID int              `json:"governanceAreaId"`
	Version          int64            `json:"version"`
}

// Initialize replaces the store's contents with snap. Nodes whose parent is
// missing, or whose parent chain loops, are re-attached as roots; their ids
// are returned so the caller can report the repair. Codes, orders and
// statuses are recomputed.
func (s *Store) Initialize(snap Snapshot) []string {
	s.Reset()
	s.governanceAreaID = snap.GovernanceAreaID
	s.version = snap.Version
	for _, n := range snap.Nodes {
		if n == nil || n.TempID == "" {
			continue
		}
		s.nodes[n.TempID] = n.Clone()
	}

	var repaired []string
	for _, n := range s.liveNodes() {
		if n.IsRoot() {
			continue
		}
		if _, ok := s.nodes[n.ParentKey()]; !ok || s.isAncestor(n.TempID, n.TempID) {
			n.ParentTempID = nil
			repaired = append(repaired, n.TempID)
		}
	}
	s.applyRootOrder(snap.RootIDs)
	for _, n := range s.nodes {
		s.refreshStatus(n)
	}
	s.RecalculateCodes()
	return repaired
}

// applyRootOrder orders roots as listed; roots missing from the list keep
// their relative order after the listed ones.
func (s *Store) applyRootOrder(rootIDs []string) {
	if len(rootIDs) == 0 {
		return
	}
	listed := make(map[string]int, len(rootIDs))
	for i, id := range rootIDs {
		if n, ok := s.nodes[id]; ok && n.IsRoot() {
			listed[id] = i + 1
		}
	}
	for _, n := range s.children("") {
		if pos, ok := listed[n.TempID]; ok {
			n.Order = pos
		} else {
			n.Order += len(rootIDs)
		}
	}
}

// Snapshot returns a deep copy of the tree in tree order.
func (s *Store) Snapshot() Snapshot {
	nodes := s.GetAllNodes()
	roots := s.children("")
	rootIDs := make([]string, 0, len(roots))
	for _, r := range roots {
		rootIDs = append(rootIDs, r.TempID)
	}
	return Snapshot{
		Nodes:            nodes,
		RootIDs:          rootIDs,
		GovernanceAreaID: s.governanceAreaID,
		Version:          s.version,
	}
}
