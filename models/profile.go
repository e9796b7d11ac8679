package models

import "time"

// Role is the flat authorization role carried by a profile.
type Role string

const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// Profile holds the role and point balance of a user. One per user, never deleted.
type Profile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Role         Role      `gorm:"size:16;not null;default:'student'" json:"role"`
	Points       int       `gorm:"not null;default:0" json:"points"`
	ReferralCode *string   `gorm:"size:16;uniqueIndex" json:"referral_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
