// Package tasks defines the messages carried over Kafka.
package tasks

import (
	"encoding/json"
	"time"
)

// VerdictTask is one submitted checklist verdict on its way to the verdict
// history. Verdict is nil when the checklist could not be decided.
type VerdictTask struct {
	EventID        string          `json:"event_id"`
	AssessmentID   string          `json:"assessment_id"`
	DraftID        uint            `json:"draft_id,omitempty"`
	IndicatorID    string          `json:"indicator_id,omitempty"`
	IndicatorCode  string          `json:"indicator_code,omitempty"`
	ValidationRule string          `json:"validation_rule"`
	Verdict        *string         `json:"verdict"`
	CheckedCount   int             `json:"checked_count"`
	TotalRequired  int             `json:"total_required"`
	UnmetRequired  []string        `json:"unmet_required"`
	Values         json.RawMessage `json:"values,omitempty"`
	SubmittedBy    uint            `json:"submitted_by"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}
