package model

import (
	"time"

	"gorm.io/datatypes"
)

// VerdictRecord is one submitted checklist verdict. EventID is unique so a
// redelivered Kafka message is recorded once.
type VerdictRecord struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID        string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"eventId"`
	AssessmentID   string         `gorm:"type:varchar(64);index;not null" json:"assessmentId"`
	DraftID        uint           `gorm:"index" json:"draftId"`
	IndicatorID    string         `gorm:"type:varchar(64)" json:"indicatorId"`
	IndicatorCode  string         `gorm:"type:varchar(64)" json:"indicatorCode"`
	ValidationRule string         `gorm:"type:varchar(32)" json:"validationRule"`
	Verdict        *string        `gorm:"type:varchar(8)" json:"verdict"`
	CheckedCount   int            `json:"checkedCount"`
	TotalRequired  int            `json:"totalRequired"`
	UnmetRequired  datatypes.JSON `json:"unmetRequired"`
	Values         datatypes.JSON `json:"values"`
	SubmittedBy    uint           `gorm:"not null" json:"submittedBy"`
	SubmittedAt    time.Time      `json:"submittedAt"`
	RecordedAt     time.Time      `gorm:"autoCreateTime" json:"recordedAt"`
}

func (VerdictRecord) TableName() string {
	return "verdict_records"
}
