package model

import "time"

// Governance area kinds in the Seal of Good Local Governance for Barangays.
const (
	AreaCore      = "core"
	AreaEssential = "essential"
)

// GovernanceArea groups indicators; its ID prefixes the codes of every root
// indicator built for it.
type GovernanceArea struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	AreaType    string    `gorm:"type:varchar(16);not null;default:core" json:"areaType"`
	CreatedBy   uint      `gorm:"not null" json:"createdBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (GovernanceArea) TableName() string {
	return "governance_areas"
}
