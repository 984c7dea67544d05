package types

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Survey is a third-party or internally stored offer. Targeting columns are
// allow-lists; a null/empty list means "no constraint".
type Survey struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider       string         `gorm:"not null;index;column:provider" json:"provider"`
	Title          string         `gorm:"not null;column:title" json:"title"`
	Description    string         `gorm:"column:description" json:"description"`
	Reward         float64        `gorm:"not null;column:reward" json:"reward"`
	EstimatedTime  int            `gorm:"column:estimated_time" json:"estimated_time"`
	CompletionRate float64        `gorm:"column:completion_rate" json:"completion_rate"`
	ClickURL       string         `gorm:"column:click_url" json:"click_url"`
	MinAge         *int           `gorm:"column:min_age" json:"min_age,omitempty"`
	MaxAge         *int           `gorm:"column:max_age" json:"max_age,omitempty"`
	Genders        datatypes.JSON `gorm:"type:jsonb;column:genders" json:"genders,omitempty"`
	Countries      datatypes.JSON `gorm:"type:jsonb;column:countries" json:"countries,omitempty"`
	Devices        datatypes.JSON `gorm:"type:jsonb;column:devices" json:"devices,omitempty"`
	Interests      datatypes.JSON `gorm:"type:jsonb;column:interests" json:"interests,omitempty"`
	TotalSlots     int            `gorm:"column:total_slots;default:0" json:"total_slots"`
	CompletedSlots int            `gorm:"column:completed_slots;default:0" json:"completed_slots"`
	Active         bool           `gorm:"column:active;default:true;index" json:"active"`
	ExpiresAt      *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
	Clicks         int64          `gorm:"column:clicks;default:0" json:"clicks"`
	ProviderData   datatypes.JSON `gorm:"type:jsonb;column:provider_data" json:"provider_data,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Survey) TableName() string { return "surveys" }

// Available reports whether the offer may still be shown: active, slots left
// (zero total_slots means uncapped), not expired.
func (s *Survey) Available(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.TotalSlots > 0 && s.CompletedSlots >= s.TotalSlots {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	return true
}
