package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/checklist"
)

func TestCalculateSchemaStatus(t *testing.T) {
	field := map[string]any{"field_id": "f1"}

	tests := []struct {
		name       string
		node       IndicatorNode
		form       bool
		calc       bool
		remark     bool
		complete   bool
		errorCount int
	}{
		{name: "empty node"},
		{
			name: "fully configured",
			node: IndicatorNode{
				FormSchema:        Schema{"fields": []any{field}},
				CalculationSchema: Schema{"method": "MANUAL"},
				RemarkSchema:      Schema{"template": "ok"},
			},
			form: true, calc: true, remark: true, complete: true,
		},
		{
			name: "auto without aggregation",
			node: IndicatorNode{CalculationSchema: Schema{"method": "AUTO"}},
		},
		{
			name: "auto with OR",
			node: IndicatorNode{CalculationSchema: Schema{"method": "auto", "aggregation": "or"}},
			calc: true,
		},
		{
			name:       "auto with bad operator",
			node:       IndicatorNode{CalculationSchema: Schema{"method": "AUTO", "aggregation": "XOR"}},
			errorCount: 1,
		},
		{
			name:       "unknown validation rule",
			node:       IndicatorNode{CalculationSchema: Schema{"method": "MANUAL", "validation_rule": "MOST"}},
			calc:       true,
			errorCount: 1,
		},
		{
			name: "bad auto calculator",
			node: IndicatorNode{CalculationSchema: Schema{
				"method":          "MANUAL",
				"auto_calculator": "SOMETHING_ELSE",
			}},
			calc:       true,
			errorCount: 1,
		},
		{
			name: "form field problems",
			node: IndicatorNode{FormSchema: Schema{"fields": []any{
				field, field, "not an object", map[string]any{"label": "no id"},
			}}},
			form:       true,
			errorCount: 3,
		},
		{
			name: "checklist id problems",
			node: IndicatorNode{
				FormSchema:     Schema{"fields": []any{field}},
				ChecklistItems: []checklist.Item{
					{ItemID: "a"}, {ItemID: "a"}, {ItemID: ""},
				},
			},
			form:       true,
			errorCount: 2,
		},
		{
			name:   "conditional remark only",
			node:   IndicatorNode{RemarkSchema: Schema{"conditional_remarks": []any{map[string]any{"when": "pass"}}}},
			remark: true,
		},
		{
			name: "blank template",
			node: IndicatorNode{RemarkSchema: Schema{"template": "   "}},
		},
		{
			name: "complete but with errors",
			node: IndicatorNode{
				FormSchema:        Schema{"fields": []any{field, field}},
				CalculationSchema: Schema{"method": "MANUAL"},
				RemarkSchema:      Schema{"template": "ok"},
			},
			form: true, calc: true, remark: true, errorCount: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := CalculateSchemaStatus(&tt.node)
			assert.Equal(t, tt.form, st.FormComplete, "form")
			assert.Equal(t, tt.calc, st.CalculationComplete, "calculation")
			assert.Equal(t, tt.remark, st.RemarkComplete, "remark")
			assert.Equal(t, tt.complete, st.IsComplete, "complete")
			assert.Len(t, st.Errors, tt.errorCount, "errors: %v", st.Errors)
		})
	}
}

func completeLeaf(t *testing.T, s *Store, parent, name string) string {
	t.Helper()
	id := mustAdd(t, s, parent, name)
	form := Schema{"fields": []any{map[string]any{"field_id": "f"}}}
	calc := Schema{"method": "MANUAL"}
	remark := Schema{"template": "done"}
	require.NoError(t, s.UpdateNode(id, NodePatch{FormSchema: &form, CalculationSchema: &calc, RemarkSchema: &remark}))
	return id
}

func TestProgress_CountsLeavesOnly(t *testing.T) {
	t.Run("flat leaves", func(t *testing.T) {
		s := newTestStore(t)
		completeLeaf(t, s, "", "a")
		mustAdd(t, s, "", "b")
		mustAdd(t, s, "", "c")
		p := s.Progress()
		assert.Equal(t, Progress{Complete: 1, Total: 3, Percentage: 33}, p)
	})

	t.Run("single leaf under parents", func(t *testing.T) {
		s := newTestStore(t)
		r := mustAdd(t, s, "", "r")
		m := mustAdd(t, s, r, "m")
		completeLeaf(t, s, m, "leaf")
		assert.Equal(t, Progress{Complete: 1, Total: 1, Percentage: 100}, s.Progress())
	})

	t.Run("deep tree", func(t *testing.T) {
		s := newTestStore(t)
		r := mustAdd(t, s, "", "r")
		a := mustAdd(t, s, r, "a")
		b := mustAdd(t, s, r, "b")
		completeLeaf(t, s, a, "a1")
		mustAdd(t, s, a, "a2")
		b1 := mustAdd(t, s, b, "b1")
		completeLeaf(t, s, b1, "b1x")
		completeLeaf(t, s, b1, "b1y")
		assert.Equal(t, Progress{Complete: 3, Total: 4, Percentage: 75}, s.Progress())
	})

	t.Run("empty tree", func(t *testing.T) {
		assert.Equal(t, Progress{}, newTestStore(t).Progress())
	})
}

func TestParentStatus(t *testing.T) {
	s := newTestStore(t)
	r := mustAdd(t, s, "", "r")
	a := mustAdd(t, s, r, "a")
	b := mustAdd(t, s, r, "b")
	completeLeaf(t, s, a, "a1")
	a2 := mustAdd(t, s, a, "a2")
	b1 := mustAdd(t, s, b, "b1")

	info, err := s.ParentStatus(r)
	require.NoError(t, err)
	assert.Equal(t, ParentInProgress, info.Status)
	assert.Equal(t, 3, info.TotalLeaves)
	assert.Equal(t, 1, info.CompleteLeaves)
	assert.Equal(t, 33, info.Percentage)
	assert.Equal(t, a2, info.FirstIncompleteLeaf)

	info, _ = s.ParentStatus(b)
	assert.Equal(t, ParentNotStarted, info.Status)
	assert.Equal(t, b1, info.FirstIncompleteLeaf)

	info, _ = s.ParentStatus(b1)
	assert.Equal(t, ParentEmpty, info.Status)

	_, err = s.DeleteNode(a2)
	require.NoError(t, err)
	info, _ = s.ParentStatus(a)
	assert.Equal(t, ParentComplete, info.Status)
	assert.Empty(t, info.FirstIncompleteLeaf)

	_, err = s.ParentStatus("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestIsLeafIndicator(t *testing.T) {
	s := newTestStore(t)
	r := mustAdd(t, s, "", "r")
	c := mustAdd(t, s, r, "c")
	all := s.GetAllNodes()

	rn, _ := s.GetNodeByID(r)
	cn, _ := s.GetNodeByID(c)
	assert.False(t, IsLeafIndicator(rn, all))
	assert.True(t, IsLeafIndicator(cn, all))
	assert.True(t, CanConfigureSchemas(cn, all))
	assert.False(t, s.IsLeaf("missing"))
}
