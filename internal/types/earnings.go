package types

import (
	"time"

	"github.com/google/uuid"
)

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusProcessed EarningStatus = "processed"
)

type EarningSource string

const (
	EarningSourceSurvey    EarningSource = "survey_completion"
	EarningSourceReferral  EarningSource = "referral_bonus"
	EarningSourceManual    EarningSource = "manual_payout"
	EarningSourceMicrotask EarningSource = "microtask_completion"
)

// PendingEarning holds amounts below the user's payout threshold. Rows are
// never deleted; a payout flips them to processed in bulk.
type PendingEarning struct {
	ID        int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uuid.UUID     `gorm:"type:uuid;not null;index:idx_pending_user_status" json:"user_id"`
	Amount    float64       `gorm:"not null;column:amount" json:"amount"`
	Source    EarningSource `gorm:"not null;column:source" json:"source"`
	SourceID  int64         `gorm:"column:source_id" json:"source_id"`
	Status    EarningStatus `gorm:"not null;index:idx_pending_user_status" json:"status"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
}

func (PendingEarning) TableName() string { return "pending_earnings" }

// UserEarnings is the per-year aggregate bumped on every disbursement.
// Tax reporting wants calendar-year figures, hence the year column.
type UserEarnings struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_earnings_user_year" json:"user_id"`
	Year             int       `gorm:"not null;uniqueIndex:idx_earnings_user_year" json:"year"`
	TotalEarnings    float64   `gorm:"not null;default:0;column:total_earnings" json:"total_earnings"`
	SurveyEarnings   float64   `gorm:"not null;default:0;column:survey_earnings" json:"survey_earnings"`
	ReferralEarnings float64   `gorm:"not null;default:0;column:referral_earnings" json:"referral_earnings"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (UserEarnings) TableName() string { return "user_earnings" }
