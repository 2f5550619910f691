package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/checklist"
	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/testutil"
	"blgu-assess-go/pkg/tasks"
)

type fakePublisher struct {
	sent []tasks.VerdictTask
	err  error
}

func (f *fakePublisher) PublishVerdict(_ context.Context, task tasks.VerdictTask) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, task)
	return nil
}

type assessmentFixture struct {
	svc       AssessmentService
	drafts    repository.DraftRepository
	cache     repository.DraftSessionRepository
	publisher *fakePublisher
	ids       map[string]string
}

// publishedTreeSnapshot builds:
//
//	1 Financial Administration (auto-calculable)
//	  1.1 Budget posting       ALL_ITEMS_REQUIRED over a, b
//	  1.2 Fund utilization     fund_utilization calculator on "utilization"
//	2 Disaster Preparedness
//	  2.1 Plan                 grouped checklist
func publishedTreeSnapshot(t *testing.T) (indicator.Snapshot, map[string]string) {
	t.Helper()
	st := indicator.NewStore()
	ids := map[string]string{}
	add := func(key, parent string, patch indicator.NodePatch) {
		id, err := st.AddNode(ids[parent], patch)
		require.NoError(t, err)
		ids[key] = id
	}

	add("fa", "", indicator.NodePatch{Name: ptr("Financial Administration"), IsAutoCalculable: ptr(true)})
	add("budget", "fa", leafPatch("Budget posting"))

	utilCalc := indicator.Schema{
		"method":          "MANUAL",
		"validation_rule": "ALL_ITEMS_REQUIRED",
		"auto_calculator": map[string]any{"type": "fund_utilization", "target_item": "utilization"},
	}
	utilItems := []checklist.Item{
		{ItemID: "fund_utilized", Label: "Amount utilized", ItemType: checklist.ItemCalculationField},
		{ItemID: "fund_allocated", Label: "Amount allocated", ItemType: checklist.ItemCalculationField},
		{ItemID: "utilization", Label: "At least 50% utilized", ItemType: checklist.ItemAssessmentField, Required: true},
	}
	add("util", "fa", indicator.NodePatch{Name: ptr("Fund utilization"), CalculationSchema: &utilCalc, ChecklistItems: &utilItems})

	add("dp", "", indicator.NodePatch{Name: ptr("Disaster Preparedness")})
	planItems := []checklist.Item{
		{ItemID: "baseline", Label: "BDRRM plan approved", ItemType: checklist.ItemCheckbox, Required: true},
		{ItemID: "opt1a", Label: "Drill report", ItemType: checklist.ItemCheckbox, Required: true, OptionGroup: "Option 1"},
		{ItemID: "opt1b", Label: "Attendance", ItemType: checklist.ItemCheckbox, Required: true, OptionGroup: "Option 1"},
		{ItemID: "opt3a", Label: "Photo", ItemType: checklist.ItemCheckbox, OptionGroup: "Option 3"},
		{ItemID: "opt3b", Label: "Certification", ItemType: checklist.ItemCheckbox, OptionGroup: "Option 3"},
	}
	add("plan", "dp", indicator.NodePatch{Name: ptr("Plan"), ChecklistItems: &planItems})
	return st.Snapshot(), ids
}

func newAssessmentFixture(t *testing.T) *assessmentFixture {
	t.Helper()
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &assessmentFixture{
		drafts:    repository.NewDraftRepository(db),
		cache:     repository.NewDraftSessionRepository(rdb),
		publisher: &fakePublisher{},
	}
	f.svc = NewAssessmentService(f.drafts, repository.NewVerdictRepository(db), f.cache, f.publisher, 0)

	snap, ids := publishedTreeSnapshot(t)
	f.ids = ids
	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	ctx := context.Background()
	d := &model.IndicatorDraft{Title: "Published", GovernanceAreaID: 0, Payload: payload, CreatedBy: 1}
	require.NoError(t, f.drafts.Create(ctx, d))
	require.NoError(t, f.drafts.MarkPublished(ctx, d.ID, 1, "", publishedAt))
	return f
}

func (f *assessmentFixture) request(key string, values checklist.Values) EvaluateRequest {
	return EvaluateRequest{DraftID: 1, IndicatorID: f.ids[key], Values: values}
}

func TestAssessment_InlineChecklist(t *testing.T) {
	f := newAssessmentFixture(t)
	items := []checklist.Item{
		{ItemID: "a", ItemType: checklist.ItemCheckbox, Required: true},
		{ItemID: "b", ItemType: checklist.ItemCheckbox, Required: true},
		{ItemID: "c", ItemType: checklist.ItemCheckbox, Required: true},
	}
	res, err := f.svc.Evaluate(context.Background(), EvaluateRequest{
		Items:          items,
		ValidationRule: checklist.RuleAllItemsRequired,
		Values:         checklist.Values{"a": true, "b": true},
	})
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictFail, res.Verdict)
	assert.Equal(t, []string{"c"}, res.UnmetRequired)
	assert.Empty(t, res.LockedFields)

	_, err = f.svc.Evaluate(context.Background(), EvaluateRequest{})
	assert.ErrorIs(t, err, ErrNothingToEvaluate)
}

func TestAssessment_PublishedLeaf(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)

	res, err := f.svc.Evaluate(ctx, f.request("budget", checklist.Values{"a": true, "b": true}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictPass, res.Verdict)
	assert.Equal(t, "1.1", res.IndicatorCode)
	assert.Equal(t, checklist.RuleAllItemsRequired, res.ValidationRule)
	assert.Equal(t, int64(1), res.DraftVersion)

	// the published snapshot is now cached
	_, _, ok, err := f.cache.CachedSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssessment_AutoCalculatorLocksAnswer(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)

	res, err := f.svc.Evaluate(ctx, f.request("util", checklist.Values{
		"fund_utilized":  60,
		"fund_allocated": 100,
		"utilization_no": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictPass, res.Verdict)
	assert.Equal(t, []string{"utilization_no", "utilization_yes"}, res.LockedFields)
	assert.Equal(t, []string{"utilization_no"}, res.RejectedFields)
	assert.Equal(t, true, res.Values["utilization_yes"])
	assert.Equal(t, false, res.Values["utilization_no"])
	require.Len(t, res.Computations, 1)
	assert.Equal(t, "60.00%", res.Computations[0].Display)

	res, err = f.svc.Evaluate(ctx, f.request("util", checklist.Values{
		"fund_utilized":   "40",
		"fund_allocated":  "100",
		"utilization_yes": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictFail, res.Verdict)
	assert.Equal(t, false, res.Values["utilization_yes"])

	// without the numeric pair nothing is forced
	res, err = f.svc.Evaluate(ctx, f.request("util", checklist.Values{"utilization_yes": true}))
	require.NoError(t, err)
	assert.Empty(t, res.LockedFields)
	assert.Equal(t, true, res.Values["utilization_yes"])
	assert.Equal(t, []string{"fund_utilized", "fund_allocated"}, res.UnmetRequired)
}

func TestAssessment_KindOnlyCalculatorTargetsAssessmentField(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)

	st := indicator.NewStore()
	calc := indicator.Schema{
		"method":          "MANUAL",
		"validation_rule": "ALL_ITEMS_REQUIRED",
		"auto_calculator": "physical_accomplishment",
	}
	items := []checklist.Item{
		{ItemID: "physical_accomplished", Label: "Accomplished", ItemType: checklist.ItemCalculationField},
		{ItemID: "physical_reflected", Label: "Reflected", ItemType: checklist.ItemCalculationField},
		{ItemID: "pa", Label: "At least 50% accomplished", ItemType: checklist.ItemAssessmentField, Required: true},
	}
	leafID, err := st.AddNode("", indicator.NodePatch{Name: ptr("Physical accomplishment"), CalculationSchema: &calc, ChecklistItems: &items})
	require.NoError(t, err)
	status, _ := st.SchemaStatus(leafID)
	assert.NotContains(t, status.Errors, "calculation_schema.auto_calculator is not a valid calculator")

	payload, err := json.Marshal(st.Snapshot())
	require.NoError(t, err)
	d := &model.IndicatorDraft{Title: "Kind only", Payload: payload, CreatedBy: 1}
	require.NoError(t, f.drafts.Create(ctx, d))
	require.NoError(t, f.drafts.MarkPublished(ctx, d.ID, 1, "", publishedAt))

	res, err := f.svc.Evaluate(ctx, EvaluateRequest{DraftID: d.ID, IndicatorID: leafID, Values: checklist.Values{
		"physical_accomplished": 40,
		"physical_reflected":    100,
		"pa_yes":                true,
	}})
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictFail, res.Verdict)
	assert.Equal(t, []string{"pa_no", "pa_yes"}, res.LockedFields)
	assert.Equal(t, []string{"pa_yes"}, res.RejectedFields)
	assert.Equal(t, false, res.Values["pa_yes"])
	assert.Equal(t, true, res.Values["pa_no"])
}

func TestAssessment_AutoCalculableParent(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)

	res, err := f.svc.Evaluate(ctx, f.request("fa", checklist.Values{
		"a": true, "b": true, "fund_utilized": 75, "fund_allocated": 100,
	}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictPass, res.Verdict)
	require.Len(t, res.Children, 2)
	assert.Equal(t, "1.2", res.Children[1].Code)

	res, err = f.svc.Evaluate(ctx, f.request("fa", checklist.Values{
		"a": true, "b": true, "fund_utilized": 10, "fund_allocated": 100,
	}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictFail, res.Verdict)
	assert.Equal(t, checklist.VerdictFail, res.Children[1].Verdict)
}

func TestAssessment_GroupedLeaf(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)

	res, err := f.svc.Evaluate(ctx, f.request("plan", checklist.Values{"baseline": true, "opt3b": true}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictPass, res.Verdict)
	assert.True(t, res.Grouped)

	res, err = f.svc.Evaluate(ctx, f.request("plan", checklist.Values{"opt1a": true, "opt1b": true}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictFail, res.Verdict)
}

func TestAssessment_Errors(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)

	_, err := f.svc.Evaluate(ctx, f.request("dp", nil))
	assert.ErrorIs(t, err, ErrNotLeafIndicator)

	_, err = f.svc.Evaluate(ctx, EvaluateRequest{DraftID: 1, IndicatorID: "nope"})
	assert.ErrorIs(t, err, ErrIndicatorNotFound)

	_, err = f.svc.Evaluate(ctx, EvaluateRequest{DraftID: 9, IndicatorID: "x"})
	assert.ErrorIs(t, err, ErrDraftNotFound)

	unpublished := &model.IndicatorDraft{Title: "WIP", Payload: []byte(`{}`), CreatedBy: 1}
	require.NoError(t, f.drafts.Create(ctx, unpublished))
	_, err = f.svc.Evaluate(ctx, EvaluateRequest{DraftID: unpublished.ID, IndicatorID: "x"})
	assert.ErrorIs(t, err, ErrDraftNotPublished)
}

func TestAssessment_EditsAfterPublishDoNotLeak(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)
	_, err := f.drafts.SaveSnapshot(ctx, 1, 1, []byte(`{"nodes":[]}`), 0, 1)
	require.NoError(t, err)

	res, err := f.svc.Evaluate(ctx, f.request("budget", checklist.Values{"a": true, "b": true}))
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictPass, res.Verdict)
	assert.Equal(t, int64(1), res.DraftVersion)
}

func TestAssessment_SubmitVerdict(t *testing.T) {
	ctx := context.Background()
	f := newAssessmentFixture(t)
	assessor := &model.User{ID: 8, Username: "assessor", Role: model.RoleAssessor}

	res, eventID, err := f.svc.SubmitVerdict(ctx, "brgy-poblacion-2026", f.request("budget", checklist.Values{"a": true}), assessor)
	require.NoError(t, err)
	assert.Equal(t, checklist.VerdictFail, res.Verdict)
	require.Len(t, f.publisher.sent, 1)
	task := f.publisher.sent[0]
	assert.Equal(t, eventID, task.EventID)
	assert.Equal(t, "brgy-poblacion-2026", task.AssessmentID)
	assert.Equal(t, "1.1", task.IndicatorCode)
	require.NotNil(t, task.Verdict)
	assert.Equal(t, "Fail", *task.Verdict)
	assert.Equal(t, []string{"b"}, task.UnmetRequired)
	assert.Equal(t, uint(8), task.SubmittedBy)
	assert.JSONEq(t, `{"a":true}`, string(task.Values))

	// an undetermined verdict travels as nil
	inline := EvaluateRequest{Items: []checklist.Item{{ItemID: "x", ItemType: checklist.ItemCheckbox}}}
	_, _, err = f.svc.SubmitVerdict(ctx, "brgy-poblacion-2026", inline, assessor)
	require.NoError(t, err)
	assert.Nil(t, f.publisher.sent[1].Verdict)

	_, _, err = f.svc.SubmitVerdict(ctx, "  ", inline, assessor)
	assert.ErrorIs(t, err, ErrMissingAssessment)

	f.publisher.err = errors.New("broker unavailable")
	_, _, err = f.svc.SubmitVerdict(ctx, "a", inline, assessor)
	assert.Error(t, err)
}

func TestAssessment_ListVerdicts(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	verdicts := repository.NewVerdictRepository(db)
	svc := NewAssessmentService(repository.NewDraftRepository(db), verdicts, nil, nil, 0)

	pass := "Pass"
	require.NoError(t, verdicts.Create(ctx, &model.VerdictRecord{EventID: "1", AssessmentID: "a", IndicatorID: "i", SubmittedBy: 1}))
	require.NoError(t, verdicts.Create(ctx, &model.VerdictRecord{EventID: "2", AssessmentID: "a", IndicatorID: "i", Verdict: &pass, SubmittedBy: 1}))

	all, err := svc.ListVerdicts(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	latest, err := svc.LatestVerdicts(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", latest["i"].EventID)

	_, _, err = svc.SubmitVerdict(ctx, "a", EvaluateRequest{Items: []checklist.Item{{ItemID: "x"}}}, mlgoo)
	assert.ErrorIs(t, err, ErrPublisherDisabled)
}
