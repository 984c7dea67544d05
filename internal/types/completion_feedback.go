package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CompletionResult string

const (
	ResultCompleted    CompletionResult = "completed"
	ResultDisqualified CompletionResult = "disqualified"
	ResultAbandoned    CompletionResult = "abandoned"
)

// CompletionFeedback is the immutable training-signal row written once per
// postback outcome. The (provider, transaction_id) unique index doubles as
// the webhook idempotency key: re-delivered postbacks hit the constraint and
// are acked without reprocessing.
type CompletionFeedback struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	SurveyID         int64            `gorm:"not null;index;column:survey_id" json:"survey_id"`
	Provider         string           `gorm:"not null;column:provider;uniqueIndex:idx_feedback_provider_trans" json:"provider"`
	TransactionID    string           `gorm:"not null;column:transaction_id;uniqueIndex:idx_feedback_provider_trans" json:"transaction_id"`
	Result           CompletionResult `gorm:"not null;column:result" json:"result"`
	TimeSpentSeconds int              `gorm:"column:time_spent_seconds" json:"time_spent_seconds"`
	RewardEarned     float64          `gorm:"column:reward_earned" json:"reward_earned"`
	UserAttributes   datatypes.JSON   `gorm:"type:jsonb;column:user_attributes" json:"user_attributes"`
	SurveyAttributes datatypes.JSON   `gorm:"type:jsonb;column:survey_attributes" json:"survey_attributes"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
}

func (CompletionFeedback) TableName() string { return "survey_completion_feedback" }
