package indicator

// ArchiveSchemasForIndicator moves the node's form, calculation and remark
// schemas (and its checklist) into metadata.archived_schemas. It is called
// automatically when a leaf gains its first child. An existing archive is
// never replaced: the call fails with ErrArchiveOccupied instead.
func (s *Store) ArchiveSchemasForIndicator(id string) error {
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if archiveOccupied(n) {
		return ErrArchiveOccupied
	}
	s.archive(n)
	return nil
}

// RestoreArchivedSchemas moves archived schemas back onto the node and
// reports whether anything was restored. It is called automatically when a
// parent loses its last child.
func (s *Store) RestoreArchivedSchemas(id string) (bool, error) {
	n, ok := s.nodes[id]
	if !ok {
		return false, ErrNodeNotFound
	}
	return s.restore(n), nil
}

// archiveOccupied reports whether archiving n would overwrite an archive.
func archiveOccupied(n *IndicatorNode) bool {
	return n != nil && n.Metadata.ArchivedSchemas != nil && n.hasEvaluableContent()
}

func (s *Store) archive(n *IndicatorNode) {
	if n == nil || !n.hasEvaluableContent() {
		return
	}
	n.Metadata.ArchivedSchemas = &ArchivedSchemas{
		FormSchema:        n.FormSchema,
		CalculationSchema: n.CalculationSchema,
		RemarkSchema:      n.RemarkSchema,
		ChecklistItems:    n.ChecklistItems,
		ArchivedAt:        s.now(),
	}
	n.FormSchema = nil
	n.CalculationSchema = nil
	n.RemarkSchema = nil
	n.ChecklistItems = nil
	s.refreshStatus(n)
}

func (s *Store) restore(n *IndicatorNode) bool {
	if n == nil || n.Metadata.ArchivedSchemas == nil {
		return false
	}
	a := n.Metadata.ArchivedSchemas
	n.FormSchema = a.FormSchema
	n.CalculationSchema = a.CalculationSchema
	n.RemarkSchema = a.RemarkSchema
	n.ChecklistItems = a.ChecklistItems
	n.Metadata.ArchivedSchemas = nil
	s.refreshStatus(n)
	return true
}
