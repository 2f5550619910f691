// Package pipeline 定义了 Kafka 任务的消费处理流程。
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/tasks"
)

// ErrInvalidTask marks a task that can never be recorded; retrying it is
// pointless.
var ErrInvalidTask = errors.New("invalid verdict task")

// VerdictRecorder writes consumed verdict tasks into the verdict history.
type VerdictRecorder struct {
	verdictRepo repository.VerdictRepository
}

func NewVerdictRecorder(verdictRepo repository.VerdictRepository) *VerdictRecorder {
	return &VerdictRecorder{verdictRepo: verdictRepo}
}

// Process records task. Redelivered tasks with an already recorded EventID
// are accepted without a second row.
func (p *VerdictRecorder) Process(ctx context.Context, task tasks.VerdictTask) error {
	if task.EventID == "" || task.AssessmentID == "" {
		return fmt.Errorf("%w: event and assessment ids are required", ErrInvalidTask)
	}
	if task.Verdict != nil && *task.Verdict != "Pass" && *task.Verdict != "Fail" {
		return fmt.Errorf("%w: verdict %q", ErrInvalidTask, *task.Verdict)
	}

	unmet := task.UnmetRequired
	if unmet == nil {
		unmet = []string{}
	}
	unmetJSON, err := json.Marshal(unmet)
	if err != nil {
		return err
	}
	values := task.Values
	if len(values) == 0 {
		values = json.RawMessage("{}")
	}

	rec := &model.VerdictRecord{
		EventID:        task.EventID,
		AssessmentID:   task.AssessmentID,
		DraftID:        task.DraftID,
		IndicatorID:    task.IndicatorID,
		IndicatorCode:  task.IndicatorCode,
		ValidationRule: task.ValidationRule,
		Verdict:        task.Verdict,
		CheckedCount:   task.CheckedCount,
		TotalRequired:  task.TotalRequired,
		UnmetRequired:  unmetJSON,
		Values:         []byte(values),
		SubmittedBy:    task.SubmittedBy,
		SubmittedAt:    task.SubmittedAt,
	}
	if err := p.verdictRepo.Create(ctx, rec); err != nil {
		log.Errorf("[VerdictRecorder] record event %s failed: %v", task.EventID, err)
		return fmt.Errorf("record verdict: %w", err)
	}
	log.Infow("[VerdictRecorder] verdict recorded", "eventId", task.EventID, "assessmentId", task.AssessmentID, "indicatorId", task.IndicatorID)
	return nil
}
