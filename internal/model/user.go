// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Roles. MLGOO administrators own the indicator builder; assessors run
// checklists; barangay users submit their own assessments.
const (
	RoleAdmin    = "ADMIN"
	RoleAssessor = "ASSESSOR"
	RoleBLGU     = "BLGU_USER"
)

// User is an account of the assessment platform.
type User struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Password         string    `gorm:"type:varchar(255);not null" json:"-"`
	Role             string    `gorm:"type:varchar(32);not null;default:BLGU_USER" json:"role"`
	BarangayName     string    `gorm:"type:varchar(255)" json:"barangayName"`
	GovernanceAreaID *uint     `json:"governanceAreaId"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether u may edit indicator drafts.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
