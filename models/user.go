package models

import "time"

const (
	UserRoleAdmin  = "admin"
	UserRoleMember = "member"
)

type User struct {
	ID             uint      `gorm:"primary_key" json:"id"`
	Username       string    `gorm:"uniqueIndex;size:128;not null" json:"username"`
	OrganizationId string    `gorm:"index;size:64;not null" json:"organization_id"`
	Role           string    `gorm:"size:20" json:"role"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
