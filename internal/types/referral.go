package types

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
)

type Referral struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerID     uuid.UUID      `gorm:"type:uuid;not null;index;column:referrer_id" json:"referrer_id"`
	ReferredUserID uuid.UUID      `gorm:"type:uuid;not null;index;column:referred_user_id" json:"referred_user_id"`
	ReferralCode   string         `gorm:"not null;column:referral_code" json:"referral_code"`
	Status         ReferralStatus `gorm:"not null;column:status" json:"status"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	CompletedAt    *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Referral) TableName() string { return "referrals" }
