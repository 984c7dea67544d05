package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PayoutPreference string

const (
	PayoutPreferenceJustTheTip PayoutPreference = "justthetip"
	PayoutPreferenceWallet     PayoutPreference = "wallet"
	PayoutPreferenceSplit      PayoutPreference = "split"
)

// Profile is the demographic profile owned by the web-profile subsystem.
// The matching core only reads it. Age is the questionnaire bracket string
// ("25-34"), location is free text; eligibility matching is substring-based
// on purpose.
type Profile struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Email            string           `gorm:"not null;column:email" json:"email"`
	Age              string           `gorm:"column:age" json:"age"`
	Gender           string           `gorm:"column:gender" json:"gender"`
	Location         string           `gorm:"column:location" json:"location"`
	Employment       string           `gorm:"column:employment" json:"employment"`
	Income           string           `gorm:"column:income" json:"income"`
	Interests        datatypes.JSON   `gorm:"type:jsonb;column:interests" json:"interests"`
	Device           string           `gorm:"column:device" json:"device"`
	DiscordID        string           `gorm:"column:discord_id" json:"discord_id,omitempty"`
	WalletAddress    string           `gorm:"column:wallet_address" json:"wallet_address,omitempty"`
	PayoutPreference PayoutPreference `gorm:"column:payout_preference" json:"payout_preference"`
	MinimumPayout    float64          `gorm:"column:minimum_payout;default:5" json:"minimum_payout"`
	ReferralCode     string           `gorm:"column:referral_code;index" json:"referral_code"`
	SubID1           string           `gorm:"column:subid_1" json:"subid_1,omitempty"`
	SubID2           string           `gorm:"column:subid_2" json:"subid_2,omitempty"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Profile) TableName() string { return "user_profiles" }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
