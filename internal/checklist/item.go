// Package checklist evaluates an indicator's checklist against the values a
// validator has filled in and produces a suggested Pass/Fail verdict.
package checklist

import (
	"encoding/json"
	"strings"
)

// ItemType enumerates the kinds of checklist lines a leaf indicator can carry.
type ItemType string

const (
	ItemCheckbox         ItemType = "checkbox"
	ItemAssessmentField  ItemType = "assessment_field"
	ItemDocumentCount    ItemType = "document_count"
	ItemCalculationField ItemType = "calculation_field"
	ItemDateInput        ItemType = "date_input"
	ItemInfoText         ItemType = "info_text"
	ItemSectionHeader    ItemType = "section_header"
)

// GroupLogic controls how the items inside one option group combine.
type GroupLogic string

const (
	GroupLogicAnd GroupLogic = "AND"
	GroupLogicOr  GroupLogic = "OR"
)

// annotationPrefix marks an item whose description is an explanatory note
// rather than something a validator can tick.
const annotationPrefix = "note:"

// Item is one line in a leaf indicator's checklist.
type Item struct {
	ItemID                string     `json:"item_id"`
	Label                 string     `json:"label"`
	ItemType              ItemType   `json:"item_type"`
	Description           string     `json:"description,omitempty"`
	Required              bool       `json:"required"`
	OptionGroup           string     `json:"option_group,omitempty"`
	GroupLogic            GroupLogic `json:"group_logic,omitempty"`
	RequiresDocumentCount bool       `json:"requires_document_count,omitempty"`
	MinValue              *float64   `json:"min_value,omitempty"`
	Threshold             *float64   `json:"threshold,omitempty"`
	DisplayOrder          int        `json:"display_order,omitempty"`
}

// Evaluable reports whether the item takes part in verdict computation.
// Info text, section headers and annotation-only notes never do.
func (i Item) Evaluable() bool {
	switch i.ItemType {
	case ItemInfoText, ItemSectionHeader:
		return false
	}
	return !isAnnotation(i.Description)
}

func isAnnotation(description string) bool {
	d := strings.ToLower(strings.TrimSpace(description))
	return strings.HasPrefix(d, annotationPrefix)
}

// CloneItems returns a deep copy of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for idx, it := range items {
		c := it
		if it.MinValue != nil {
			v := *it.MinValue
			c.MinValue = &v
		}
		if it.Threshold != nil {
			v := *it.Threshold
			c.Threshold = &v
		}
		out[idx] = c
	}
	return out
}

// Verdict is the outcome of evaluating a checklist. The zero value means no
// verdict could be determined yet, which is distinct from an explicit Fail.
type Verdict string

const (
	VerdictUndetermined Verdict = ""
	VerdictPass         Verdict = "Pass"
	VerdictFail         Verdict = "Fail"
)

// Determined reports whether v carries an actual Pass or Fail.
func (v Verdict) Determined() bool {
	return v == VerdictPass || v == VerdictFail
}

// MarshalJSON encodes an undetermined verdict as null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	if !v.Determined() {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

// UnmarshalJSON accepts "Pass", "Fail" or null.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = VerdictUndetermined
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Verdict(s)
	return nil
}

// ValidationRule names how a flat checklist is turned into a verdict.
type ValidationRule string

const (
	RuleAllItemsRequired  ValidationRule = "ALL_ITEMS_REQUIRED"
	RuleAnyItemRequired   ValidationRule = "ANY_ITEM_REQUIRED"
	RuleOrLogicAtLeastOne ValidationRule = "OR_LOGIC_AT_LEAST_1_REQUIRED"
	RuleUnspecified       ValidationRule = ""
)
