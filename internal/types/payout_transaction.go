package types

import (
	"time"

	"github.com/google/uuid"
)

type PayoutMethod string

const (
	MethodJustTheTipBalance PayoutMethod = "justthetip_balance"
	MethodWallet            PayoutMethod = "wallet"
	MethodSplit             PayoutMethod = "split"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

// PayoutTransaction is immutable once completed. Failed disbursements are
// retried by issuing a new transaction, never by mutating the old row.
type PayoutTransaction struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount        float64       `gorm:"not null;column:amount" json:"amount"`
	Type          EarningSource `gorm:"not null;column:type" json:"type"`
	Method        PayoutMethod  `gorm:"not null;column:method" json:"method"`
	Status        PayoutStatus  `gorm:"not null;column:status" json:"status"`
	TransactionID string        `gorm:"column:transaction_id;index" json:"transaction_id"`
	ErrorMessage  string        `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	CompletedAt   *time.Time    `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (PayoutTransaction) TableName() string { return "payout_transactions" }
