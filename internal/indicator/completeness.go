package indicator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"blgu-assess-go/internal/checklist"
)

// SchemaStatus is the cached completeness projection of one node.
type SchemaStatus struct {
	FormComplete        bool      `json:"formComplete"`
	CalculationComplete bool      `json:"calculationComplete"`
	RemarkComplete      bool      `json:"remarkComplete"`
	IsComplete          bool      `json:"isComplete"`
	Errors              []string  `json:"errors"`
	LastEdited          time.Time `json:"lastEdited"`
}

// Parent progress states.
const (
	ParentComplete   = "complete"
	ParentInProgress = "in_progress"
	ParentNotStarted = "not_started"
	ParentEmpty      = "empty"
)

// ParentStatusInfo summarises the completeness of a parent's descendant leaves.
type ParentStatusInfo struct {
	Status              string `json:"status"`
	TotalLeaves         int    `json:"totalLeaves"`
	CompleteLeaves      int    `json:"completeLeaves"`
	Percentage          int    `json:"percentage"`
	FirstIncompleteLeaf string `json:"firstIncompleteLeaf,omitempty"`
}

// Progress is the global leaf completeness count.
type Progress struct {
	Complete   int `json:"complete"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

var (
	aggregationOperators = map[string]bool{"AND": true, "OR": true}
	validationRules      = map[checklist.ValidationRule]bool{
		checklist.RuleAllItemsRequired:  true,
		checklist.RuleAnyItemRequired:   true,
		checklist.RuleOrLogicAtLeastOne: true,
	}
)

// CalculateSchemaStatus validates a single node's schemas. It is a pure
// function of the node; LastEdited is left for the caller to stamp.
func CalculateSchemaStatus(n *IndicatorNode) SchemaStatus {
	st := SchemaStatus{Errors: []string{}}
	var errs []string

	st.FormComplete, errs = validateForm(n.FormSchema, n.ChecklistItems)
	st.Errors = append(st.Errors, errs...)
	st.CalculationComplete, errs = validateCalculation(n.CalculationSchema, n.ChecklistItems)
	st.Errors = append(st.Errors, errs...)
	st.RemarkComplete = validateRemark(n.RemarkSchema)

	st.IsComplete = st.FormComplete && st.CalculationComplete && st.RemarkComplete && len(st.Errors) == 0
	return st
}

// validateForm: complete once the form declares at least one field.
func validateForm(form Schema, items []checklist.Item) (bool, []string) {
	var errs []string
	fields := asList(form["fields"])
	seen := make(map[string]bool)
	for i, f := range fields {
		m, ok := f.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("form_schema.fields[%d] is not an object", i))
			continue
		}
		id, _ := m["field_id"].(string)
		if id == "" {
			errs = append(errs, fmt.Sprintf("form_schema.fields[%d] is missing field_id", i))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Sprintf("form_schema has duplicate field_id %q", id))
		}
		seen[id] = true
	}

	itemIDs := make(map[string]bool)
	for i, it := range items {
		if it.ItemID == "" {
			errs = append(errs, fmt.Sprintf("checklist_items[%d] is missing item_id", i))
			continue
		}
		if itemIDs[it.ItemID] {
			errs = append(errs, fmt.Sprintf("checklist has duplicate item_id %q", it.ItemID))
		}
		itemIDs[it.ItemID] = true
	}
	return len(fields) > 0, errs
}

// validateCalculation: complete once a method is declared and, for AUTO, an
// aggregation operator.
func validateCalculation(calc Schema, items []checklist.Item) (bool, []string) {
	if calc == nil {
		return false, nil
	}
	var errs []string
	if raw, ok := calc["validation_rule"]; ok {
		rule, _ := raw.(string)
		if rule != "" && !validationRules[checklist.ValidationRule(rule)] {
			errs = append(errs, fmt.Sprintf("calculation_schema.validation_rule %q is not recognised", rule))
		}
	}
	if raw, ok := calc["auto_calculator"]; ok && raw != nil {
		if _, ok := checklist.ParseAutoCalculators(raw, items); !ok {
			errs = append(errs, "calculation_schema.auto_calculator is not a valid calculator")
		}
	}

	method, _ := calc["method"].(string)
	if strings.TrimSpace(method) == "" {
		return false, errs
	}
	if !strings.EqualFold(method, "AUTO") {
		return true, errs
	}
	op, _ := calc["aggregation"].(string)
	if op == "" {
		return false, errs
	}
	if !aggregationOperators[strings.ToUpper(op)] {
		errs = append(errs, fmt.Sprintf("calculation_schema.aggregation %q is not one of AND, OR", op))
		return false, errs
	}
	return true, errs
}

// validateRemark: complete with a non-empty template or at least one
// conditional remark.
func validateRemark(remark Schema) bool {
	if remark == nil {
		return false
	}
	if tpl, _ := remark["template"].(string); strings.TrimSpace(tpl) != "" {
		return true
	}
	return len(asList(remark["conditional_remarks"])) > 0
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	}
	return nil
}

// IsLeafIndicator reports whether no node in allNodes names n as its parent.
func IsLeafIndicator(n *IndicatorNode, allNodes []*IndicatorNode) bool {
	for _, other := range allNodes {
		if other.ParentTempID != nil && *other.ParentTempID == n.TempID {
			return false
		}
	}
	return true
}

// CanConfigureSchemas reports whether schemas may be edited on n; only leaves
// carry evaluable configuration.
func CanConfigureSchemas(n *IndicatorNode, allNodes []*IndicatorNode) bool {
	return IsLeafIndicator(n, allNodes)
}

// GetParentStatusInfo walks every descendant leaf of n and summarises their
// completeness. FirstIncompleteLeaf is the first incomplete leaf in tree
// order (depth first, sibling order).
func GetParentStatusInfo(n *IndicatorNode, allNodes []*IndicatorNode, statusMap map[string]SchemaStatus) ParentStatusInfo {
	index := make(map[string][]*IndicatorNode)
	for _, node := range allNodes {
		index[node.ParentKey()] = append(index[node.ParentKey()], node)
	}
	for _, kids := range index {
		sortSiblings(kids)
	}

	var info ParentStatusInfo
	var walk func(id string)
	walk = func(id string) {
		for _, k := range index[id] {
			if len(index[k.TempID]) > 0 {
				walk(k.TempID)
				continue
			}
			info.TotalLeaves++
			if statusMap[k.TempID].IsComplete {
				info.CompleteLeaves++
			} else if info.FirstIncompleteLeaf == "" {
				info.FirstIncompleteLeaf = k.TempID
			}
		}
	}
	walk(n.TempID)

	info.Percentage = percent(info.CompleteLeaves, info.TotalLeaves)
	switch {
	case info.TotalLeaves == 0:
		info.Status = ParentEmpty
	case info.CompleteLeaves == info.TotalLeaves:
		info.Status = ParentComplete
	case info.CompleteLeaves == 0:
		info.Status = ParentNotStarted
	default:
		info.Status = ParentInProgress
	}
	return info
}

// GetLeafSchemaProgress counts complete leaves out of all leaves. Parents are
// never part of the denominator.
func GetLeafSchemaProgress(nodes []*IndicatorNode, statusMap map[string]SchemaStatus) Progress {
	hasChild := make(map[string]bool)
	for _, n := range nodes {
		if n.ParentTempID != nil {
			hasChild[*n.ParentTempID] = true
		}
	}
	var p Progress
	for _, n := range nodes {
		if hasChild[n.TempID] {
			continue
		}
		p.Total++
		if statusMap[n.TempID].IsComplete {
			p.Complete++
		}
	}
	p.Percentage = percent(p.Complete, p.Total)
	return p
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

func (s *Store) refreshStatus(n *IndicatorNode) {
	st := CalculateSchemaStatus(n)
	st.LastEdited = s.now()
	s.statuses[n.TempID] = st
}

// SchemaStatus returns the cached status of id.
func (s *Store) SchemaStatus(id string) (SchemaStatus, bool) {
	st, ok := s.statuses[id]
	return st, ok
}

// StatusMap returns a copy of every cached status keyed by temp id.
func (s *Store) StatusMap() map[string]SchemaStatus {
	out := make(map[string]SchemaStatus, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// CanConfigureSchemas reports whether id is currently a leaf.
func (s *Store) CanConfigureSchemas(id string) bool {
	return s.IsLeaf(id)
}

// ParentStatus summarises the leaves under id.
func (s *Store) ParentStatus(id string) (ParentStatusInfo, error) {
	n, ok := s.nodes[id]
	if !ok {
		return ParentStatusInfo{}, ErrNodeNotFound
	}
	return GetParentStatusInfo(n, s.liveNodes(), s.statuses), nil
}

// Progress reports global leaf completeness for the whole tree.
func (s *Store) Progress() Progress {
	return GetLeafSchemaProgress(s.liveNodes(), s.statuses)
}

func (s *Store) liveNodes() []*IndicatorNode {
	out := make([]*IndicatorNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}
