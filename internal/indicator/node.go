// Package indicator holds the in-memory indicator tree used by the builder:
// hierarchical codes, structural edits, schema archiving and the completeness
// tracking that drives the builder's progress display.
package indicator

import (
	"time"

	"blgu-assess-go/internal/checklist"
)

// Schema is a hand-authored configuration document (form, calculation or
// remark). The tree never interprets its contents; the completeness
// validators in this package do.
type Schema map[string]any

// SchemaKind names one of the three configurable schemas on a leaf.
type SchemaKind string

const (
	SchemaForm        SchemaKind = "form"
	SchemaCalculation SchemaKind = "calculation"
	SchemaRemark      SchemaKind = "remark"
)

// IndicatorNode is one indicator in the tree. TempID is minted on the client
// side and stays stable until the draft is persisted; ID is the permanent id
// assigned by the server, if any.
type IndicatorNode struct {
	TempID           string  `json:"temp_id"`
	ID               *uint   `json:"id,omitempty"`
	ParentTempID     *string `json:"parent_id"`
	Order            int     `json:"order"`
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	IsAutoCalculable bool    `json:"is_auto_calculable"`

	FormSchema        Schema `json:"form_schema,omitempty"`
	CalculationSchema Schema `json:"calculation_schema,omitempty"`
	RemarkSchema      Schema `json:"remark_schema,omitempty"`

	ChecklistItems []checklist.Item `json:"checklist_items,omitempty"`
	Metadata       NodeMetadata     `json:"metadata"`
}

// NodeMetadata is the side bag carried with every node.
type NodeMetadata struct {
	ArchivedSchemas *ArchivedSchemas `json:"archived_schemas,omitempty"`
}

// ArchivedSchemas holds a leaf's evaluable configuration while the node is a
// parent.
type ArchivedSchemas struct {
	FormSchema        Schema           `json:"form_schema,omitempty"`
	CalculationSchema Schema           `json:"calculation_schema,omitempty"`
	RemarkSchema      Schema           `json:"remark_schema,omitempty"`
	ChecklistItems    []checklist.Item `json:"checklist_items,omitempty"`
	ArchivedAt        time.Time        `json:"archived_at"`
}

// ParentKey returns the parent's temp id, or "" for a root.
func (n *IndicatorNode) ParentKey() string {
	if n.ParentTempID == nil {
		return ""
	}
	return *n.ParentTempID
}

// IsRoot reports whether n has no parent.
func (n *IndicatorNode) IsRoot() bool {
	return n.ParentTempID == nil
}

func (n *IndicatorNode) hasEvaluableContent() bool {
	return n.FormSchema != nil || n.CalculationSchema != nil || n.RemarkSchema != nil || len(n.ChecklistItems) > 0
}

// Clone returns a deep copy of n.
func (n *IndicatorNode) Clone() *IndicatorNode {
	c := *n
	if n.ID != nil {
		id := *n.ID
		c.ID = &id
	}
	if n.ParentTempID != nil {
		p := *n.ParentTempID
		c.ParentTempID = &p
	}
	c.FormSchema = n.FormSchema.Clone()
	c.CalculationSchema = n.CalculationSchema.Clone()
	c.RemarkSchema = n.RemarkSchema.Clone()
	c.ChecklistItems = checklist.CloneItems(n.ChecklistItems)
	if a := n.Metadata.ArchivedSchemas; a != nil {
		c.Metadata.ArchivedSchemas = &ArchivedSchemas{
			FormSchema:        a.FormSchema.Clone(),
			CalculationSchema: a.CalculationSchema.Clone(),
			RemarkSchema:      a.RemarkSchema.Clone(),
			ChecklistItems:    checklist.CloneItems(a.ChecklistItems),
			ArchivedAt:        a.ArchivedAt,
		}
	}
	return &c
}

// Clone returns a deep copy of s. Nested maps and slices are copied; scalar
// leaves are shared.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	return Schema(cloneValue(map[string]any(s)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Schema:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val).(map[string]any)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// NodePatch is a partial update. Nil fields are left untouched; a non-nil
// schema pointer replaces the schema, and pointing at a nil Schema clears it.
type NodePatch struct {
	Name              *string           `json:"name,omitempty"`
	Description       *string           `json:"description,omitempty"`
	IsAutoCalculable  *bool             `json:"is_auto_calculable,omitempty"`
	FormSchema        *Schema           `json:"form_schema,omitempty"`
	CalculationSchema *Schema           `json:"calculation_schema,omitempty"`
	RemarkSchema      *Schema           `json:"remark_schema,omitempty"`
	ChecklistItems    *[]checklist.Item `json:"checklist_items,omitempty"`
}

// TouchesSchemas reports whether applying p can change a node's SchemaStatus.
func (p NodePatch) TouchesSchemas() bool {
	return p.FormSchema != nil || p.CalculationSchema != nil || p.RemarkSchema != nil || p.ChecklistItems != nil
}

func (p NodePatch) apply(n *IndicatorNode) {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.IsAutoCalculable != nil {
		n.IsAutoCalculable = *p.IsAutoCalculable
	}
	if p.FormSchema != nil {
		n.FormSchema = p.FormSchema.Clone()
	}
	if p.CalculationSchema != nil {
		n.CalculationSchema = p.CalculationSchema.Clone()
	}
	if p.RemarkSchema != nil {
		n.RemarkSchema = p.RemarkSchema.Clone()
	}
	if p.ChecklistItems != nil {
		n.ChecklistItems = checklist.CloneItems(*p.ChecklistItems)
	}
}

// TreeNode is the nested projection of the tree used for display.
type TreeNode struct {
	IndicatorNode
	IsLeaf   bool         `json:"is_leaf"`
	Status   SchemaStatus `json:"schema_status"`
	Children []*TreeNode  `json:"children"`
}
