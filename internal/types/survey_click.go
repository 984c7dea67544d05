package types

import (
	"time"

	"github.com/google/uuid"
)

// SurveyClick snapshots the match score shown at click time so postback
// feedback can be joined back to what the ranker promised.
type SurveyClick struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SurveyID       int64     `gorm:"not null;index;column:survey_id" json:"survey_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ProfileID      uuid.UUID `gorm:"type:uuid;not null;column:profile_id" json:"profile_id"`
	ExpectedReward float64   `gorm:"column:expected_reward" json:"expected_reward"`
	MatchScore     float64   `gorm:"column:match_score" json:"match_score"`
	ClickedAt      time.Time `gorm:"not null;column:clicked_at" json:"clicked_at"`
}

func (SurveyClick) TableName() string { return "survey_clicks" }

// CompletionStats tracks a user's lifetime attempt/completion counts, fed by
// the webhook handler and read by the heuristic scorer.
type CompletionStats struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	TotalAttempts    int       `gorm:"not null;default:0;column:total_attempts" json:"total_attempts"`
	CompletedSurveys int       `gorm:"not null;default:0;column:completed_surveys" json:"completed_surveys"`
	CompletionRate   float64   `gorm:"not null;default:0;column:completion_rate" json:"completion_rate"`
	AvgSurveyTime    float64   `gorm:"not null;default:0;column:avg_survey_time" json:"avg_survey_time"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (CompletionStats) TableName() string { return "user_completion_stats" }
