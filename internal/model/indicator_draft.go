package model

import (
	"time"

	"gorm.io/datatypes"
)

// Draft lifecycle. A published draft that is saved again goes back to
// draft status until it is republished; assessments keep reading the
// published payload in the meantime.
const (
	DraftStatusDraft     = "draft"
	DraftStatusPublished = "published"
)

// IndicatorDraft persists one indicator tree snapshot. Version is the
// optimistic lock token: every successful save increments it by one.
type IndicatorDraft struct {
	ID               uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title            string         `gorm:"type:varchar(255);not null" json:"title"`
	GovernanceAreaID int            `gorm:"index;not null" json:"governanceAreaId"`
	Status           string         `gorm:"type:varchar(16);not null;default:draft" json:"status"`
	Version          int64          `gorm:"not null;default:1" json:"version"`
	Payload          datatypes.JSON `json:"payload"`
	PublishedVersion int64          `gorm:"not null;default:0" json:"publishedVersion"`
	PublishedPayload datatypes.JSON `json:"-"`
	ExportObject     string         `gorm:"type:varchar(255)" json:"exportObject,omitempty"`
	CreatedBy        uint           `gorm:"not null" json:"createdBy"`
	UpdatedBy        uint           `json:"updatedBy"`
	PublishedAt      *time.Time     `json:"publishedAt,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (IndicatorDraft) TableName() string {
	return "indicator_drafts"
}

// IsPublished reports whether some version of d has been published.
func (d *IndicatorDraft) IsPublished() bool {
	return d.PublishedVersion > 0 && len(d.PublishedPayload) > 0
}

// DraftSummary is the list view of a draft, without the payload.
type DraftSummary struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	GovernanceAreaID int        `json:"governanceAreaId"`
	Status           string     `json:"status"`
	Version          int64      `json:"version"`
	PublishedVersion int64      `json:"publishedVersion"`
	UpdatedAt        LocalTime  `json:"updatedAt"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
}

// Summary projects d for listing.
func (d IndicatorDraft) Summary() DraftSummary {
	return DraftSummary{
		ID:               d.ID,
		Title:            d.Title,
		GovernanceAreaID: d.GovernanceAreaID,
		Status:           d.Status,
		Version:          d.Version,
		PublishedVersion: d.PublishedVersion,
		UpdatedAt:        LocalTime(d.UpdatedAt),
		PublishedAt:      d.PublishedAt,
	}
}
