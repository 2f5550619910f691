package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/testutil"
	"blgu-assess-go/pkg/tasks"
)

func TestVerdictRecorder_Process(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewVerdictRepository(testutil.NewDB(t))
	rec := NewVerdictRecorder(repo)

	pass := "Pass"
	task := tasks.VerdictTask{
		EventID:        "evt-1",
		AssessmentID:   "brgy-12-2026",
		DraftID:        4,
		IndicatorID:    "tmp-a",
		IndicatorCode:  "1.1.1",
		ValidationRule: "ALL_ITEMS_REQUIRED",
		Verdict:        &pass,
		CheckedCount:   3,
		TotalRequired:  3,
		Values:         json.RawMessage(`{"a":true,"b":true,"c":true}`),
		SubmittedBy:    7,
		SubmittedAt:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, rec.Process(ctx, task))
	// redelivery is absorbed
	require.NoError(t, rec.Process(ctx, task))

	got, err := repo.ListByAssessment(ctx, "brgy-12-2026")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.1.1", got[0].IndicatorCode)
	assert.Equal(t, "Pass", *got[0].Verdict)
	assert.JSONEq(t, `[]`, string(got[0].UnmetRequired))
	assert.JSONEq(t, `{"a":true,"b":true,"c":true}`, string(got[0].Values))
}

func TestVerdictRecorder_UndeterminedVerdict(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewVerdictRepository(testutil.NewDB(t))
	rec := NewVerdictRecorder(repo)

	require.NoError(t, rec.Process(ctx, tasks.VerdictTask{
		EventID:       "evt-2",
		AssessmentID:  "a",
		UnmetRequired: []string{"x", "y"},
		SubmittedBy:   1,
	}))
	got, err := repo.ListByAssessment(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Verdict)
	assert.JSONEq(t, `["x","y"]`, string(got[0].UnmetRequired))
	assert.JSONEq(t, `{}`, string(got[0].Values))
}

func TestVerdictRecorder_RejectsInvalidTasks(t *testing.T) {
	rec := NewVerdictRecorder(repository.NewVerdictRepository(testutil.NewDB(t)))
	bogus := "Maybe"

	cases := map[string]tasks.VerdictTask{
		"missing event id":      {AssessmentID: "a"},
		"missing assessment id": {EventID: "e"},
		"unknown verdict":       {EventID: "e", AssessmentID: "a", Verdict: &bogus},
	}
	for name, task := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, rec.Process(context.Background(), task), ErrInvalidTask)
		})
	}
}
