package models

import "time"

// ReferralStatus tracks whether the referrer has been rewarded for a sign-up.
type ReferralStatus string

const (
	ReferralPendingSignup   ReferralStatus = "pending_signup"
	ReferralCompletedSignup ReferralStatus = "completed_signup"
)

// Referral links a referrer to the user who signed up with their code.
type Referral struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ReferrerID       uint           `gorm:"not null;index" json:"referrer_id"`
	ReferralCodeUsed string         `gorm:"size:16;not null;index" json:"referral_code_used"`
	ReferredUserID   *uint          `gorm:"uniqueIndex" json:"referred_user_id"`
	Status           ReferralStatus `gorm:"size:32;not null" json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}
