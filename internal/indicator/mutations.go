package indicator

// AddNode appends a new node as the last child of parentID, or as the last
// root when parentID is empty, and returns its temp id. A parent that was a
// leaf has its schemas archived.
func (s *Store) AddNode(parentID string, patch NodePatch) (string, error) {
	if parentID != "" {
		if _, ok := s.nodes[parentID]; !ok {
			return "", ErrParentNotFound
		}
	}
	siblings := s.children(parentID)
	parentWasLeaf := parentID != "" && len(siblings) == 0
	if parentWasLeaf && archiveOccupied(s.nodes[parentID]) {
		return "", ErrArchiveOccupied
	}

	n := &IndicatorNode{
		TempID: s.newID(),
		Order:  len(siblings) + 1,
	}
	if parentID != "" {
		p := parentID
		n.ParentTempID = &p
	}
	patch.apply(n)
	s.nodes[n.TempID] = n
	s.refreshStatus(n)

	if parentWasLeaf {
		s.archive(s.nodes[parentID])
	}
	s.RecalculateCodes()
	return n.TempID, nil
}

// UpdateNode merges patch into the node. Schema changes refresh the node's
// SchemaStatus; a rename recalculates codes.
func (s *Store) UpdateNode(id string, patch NodePatch) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	patch.apply(n)
	if patch.TouchesSchemas() {
		s.refreshStatus(n)
	}
	if patch.Name != nil {
		s.RecalculateCodes()
	}
	return nil
}

// DeleteNode removes id and all of its descendants and returns the removed
// ids. Remaining siblings are renumbered, and a parent left without children
// gets its archived schemas back.
func (s *Store) DeleteNode(id string) ([]string, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	parentID := n.ParentKey()
	removed := s.subtree(id)
	for _, rid := range removed {
		delete(s.nodes, rid)
		delete(s.statuses, rid)
		if s.selectedID == rid {
			s.selectedID = ""
		}
		if s.editingID == rid {
			s.editingID = ""
		}
	}

	if parentID != "" && !s.hasChildren(parentID) {
		if parent, ok := s.nodes[parentID]; ok {
			s.restore(parent)
		}
	}
	s.RecalculateCodes()
	return removed, nil
}

// DuplicateNode clones id, optionally with its whole subtree, and inserts the
// clone right after the source. The clone gets fresh temp ids, loses any
// server id and has " (Copy)" appended to its name.
func (s *Store) DuplicateNode(id string, includeChildren bool) (string, error) {
	src, ok := s.nodes[id]
	if !ok {
		return "", ErrNodeNotFound
	}
	for _, sib := range s.children(src.ParentKey()) {
		if sib.Order > src.Order {
			sib.Order++
		}
	}

	clone := s.cloneFresh(src, src.ParentTempID)
	clone.Name = src.Name + " (Copy)"
	clone.Order = src.Order + 1
	s.nodes[clone.TempID] = clone

	if includeChildren {
		s.duplicateChildren(src.TempID, clone.TempID)
	} else if clone.Metadata.ArchivedSchemas != nil {
		// A childless copy of a parent is a leaf again.
		s.restore(clone)
	}
	s.refreshStatus(clone)
	s.RecalculateCodes()
	return clone.TempID, nil
}

func (s *Store) duplicateChildren(srcID, dstID string) {
	for _, child := range s.children(srcID) {
		parent := dstID
		c := s.cloneFresh(child, &parent)
		s.nodes[c.TempID] = c
		s.refreshStatus(c)
		s.duplicateChildren(child.TempID, c.TempID)
	}
}

func (s *Store) cloneFresh(src *IndicatorNode, parent *string) *IndicatorNode {
	c := src.Clone()
	c.TempID = s.newID()
	c.ID = nil
	if parent != nil {
		p := *parent
		c.ParentTempID = &p
	} else {
		c.ParentTempID = nil
	}
	return c
}

// MoveNode reparents id under newParentID (empty for root) at newIndex among
// the new siblings; a negative or out-of-range index appends. Moving a node
// under itself or one of its descendants is rejected and leaves the tree
// unchanged.
func (s *Store) MoveNode(id, newParentID string, newIndex int) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if newParentID != "" {
		if _, ok := s.nodes[newParentID]; !ok {
			return ErrParentNotFound
		}
		if newParentID == id || s.isAncestor(id, newParentID) {
			return ErrMoveIntoDescendant
		}
		if newParentID != n.ParentKey() && !s.hasChildren(newParentID) && archiveOccupied(s.nodes[newParentID]) {
			return ErrArchiveOccupied
		}
	}

	oldParentID := n.ParentKey()
	var oldSiblings []*IndicatorNode
	for _, sib := range s.children(oldParentID) {
		if sib != n {
			oldSiblings = append(oldSiblings, sib)
		}
	}
	renumber(oldSiblings)

	var targets []*IndicatorNode
	for _, sib := range s.children(newParentID) {
		if sib != n {
			targets = append(targets, sib)
		}
	}
	newParentWasLeaf := newParentID != "" && len(targets) == 0 && newParentID != oldParentID

	if newIndex < 0 || newIndex > len(targets) {
		newIndex = len(targets)
	}
	ordered := make([]*IndicatorNode, 0, len(targets)+1)
	ordered = append(ordered, targets[:newIndex]...)
	ordered = append(ordered, n)
	ordered = append(ordered, targets[newIndex:]...)
	renumber(ordered)

	if newParentID == "" {
		n.ParentTempID = nil
	} else {
		p := newParentID
		n.ParentTempID = &p
	}

	if newParentWasLeaf {
		s.archive(s.nodes[newParentID])
	}
	if oldParentID != "" && oldParentID != newParentID && !s.hasChildren(oldParentID) {
		s.restore(s.nodes[oldParentID])
	}
	s.RecalculateCodes()
	return nil
}

// ReorderNodes applies a complete ordering of parentID's children (roots when
// parentID is empty).
func (s *Store) ReorderNodes(parentID string, orderedChildIDs []string) error {
	if parentID != "" {
		if _, ok := s.nodes[parentID]; !ok {
			return ErrParentNotFound
		}
	}
	current := s.children(parentID)
	if len(current) != len(orderedChildIDs) {
		return ErrInvalidOrdering
	}
	byID := make(map[string]*IndicatorNode, len(current))
	for _, c := range current {
		byID[c.TempID] = c
	}
	ordered := make([]*IndicatorNode, 0, len(current))
	for _, cid := range orderedChildIDs {
		c, ok := byID[cid]
		if !ok {
			return ErrInvalidOrdering
		}
		delete(byID, cid)
		ordered = append(ordered, c)
	}
	renumber(ordered)
	s.RecalculateCodes()
	return nil
}
