package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskType string

const (
	TaskDataVerification   TaskType = "data_verification"
	TaskContentModeration  TaskType = "content_moderation"
	TaskImageTagging       TaskType = "image_tagging"
	TaskTextTranscription  TaskType = "text_transcription"
	TaskLinkValidation     TaskType = "link_validation"
	TaskSocialEngagement   TaskType = "social_media_engagement"
	TaskFeedbackCollection TaskType = "feedback_collection"
	TaskQualityAssurance   TaskType = "quality_assurance"
)

type Microtask struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Title            string         `gorm:"not null;column:title" json:"title"`
	Description      string         `gorm:"column:description" json:"description"`
	Instructions     string         `gorm:"column:instructions" json:"instructions"`
	TaskType         TaskType       `gorm:"not null;column:task_type;index" json:"task_type"`
	Payout           float64        `gorm:"not null;column:payout" json:"payout"`
	EstimatedMinutes int            `gorm:"column:estimated_minutes" json:"estimated_minutes"`
	TotalSlots       int            `gorm:"not null;column:total_slots" json:"total_slots"`
	CompletedSlots   int            `gorm:"not null;default:0;column:completed_slots" json:"completed_slots"`
	RequiredAccuracy float64        `gorm:"column:required_accuracy;default:0.8" json:"required_accuracy"`
	Active           bool           `gorm:"column:active;default:true;index" json:"active"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
	TaskData         datatypes.JSON `gorm:"type:jsonb;column:task_data" json:"task_data"`
	ValidationRules  datatypes.JSON `gorm:"type:jsonb;column:validation_rules" json:"validation_rules"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Microtask) TableName() string { return "microtasks" }

func (m *Microtask) Available(now time.Time) bool {
	if !m.Active {
		return false
	}
	if m.TotalSlots > 0 && m.CompletedSlots >= m.TotalSlots {
		return false
	}
	if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
		return false
	}
	return true
}

type SubmissionStatus string

const (
	SubmissionSubmitted     SubmissionStatus = "submitted"
	SubmissionApproved      SubmissionStatus = "approved"
	SubmissionRejected      SubmissionStatus = "rejected"
	SubmissionPendingReview SubmissionStatus = "pending_review"
)

type MicrotaskCompletion struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	MicrotaskID      int64            `gorm:"not null;index;uniqueIndex:idx_microtask_user;column:microtask_id" json:"microtask_id"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_microtask_user" json:"user_id"`
	ProfileID        uuid.UUID        `gorm:"type:uuid;not null;column:profile_id" json:"profile_id"`
	Status           SubmissionStatus `gorm:"not null;column:status" json:"status"`
	SubmissionData   datatypes.JSON   `gorm:"type:jsonb;column:submission_data" json:"submission_data"`
	ValidationScore  float64          `gorm:"column:validation_score" json:"validation_score"`
	PayoutAmount     float64          `gorm:"not null;column:payout_amount" json:"payout_amount"`
	PayoutStatus     PayoutStatus     `gorm:"not null;column:payout_status" json:"payout_status"`
	ReviewNotes      string           `gorm:"column:review_notes" json:"review_notes,omitempty"`
	TimeSpentSeconds int              `gorm:"column:time_spent_seconds" json:"time_spent_seconds"`
	SubmittedAt      time.Time        `gorm:"not null;column:submitted_at" json:"submitted_at"`
	ReviewedAt       *time.Time       `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
}

func (MicrotaskCompletion) TableName() string { return "microtask_completions" }
