package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

type ReferralRepo interface {
	Create(ctx context.Context, tx *gorm.DB, referral *types.Referral) (*types.Referral, error)
	ListByReferrer(ctx context.Context, tx *gorm.DB, referrerID uuid.UUID) ([]*types.Referral, error)
	CompletePending(ctx context.Context, tx *gorm.DB, referredUserID uuid.UUID) ([]*types.Referral, error)
}

type referralRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferralRepo(db *gorm.DB, baseLog *logger.Logger) ReferralRepo {
	return &referralRepo{db: db, log: baseLog.With("repo", "ReferralRepo")}
}

func (r *referralRepo) Create(ctx context.Context, tx *gorm.DB, referral *types.Referral) (*types.Referral, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(referral).Error; err != nil {
		return nil, err
	}
	return referral, nil
}

func (r *referralRepo) ListByReferrer(ctx context.Context, tx *gorm.DB, referrerID uuid.UUID) ([]*types.Referral, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Referral
	if err := transaction.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CompletePending flips the referred user's pending referrals to completed
// and returns the flipped rows so the caller can pay the referrer bonus.
func (r *referralRepo) CompletePending(ctx context.Context, tx *gorm.DB, referredUserID uuid.UUID) ([]*types.Referral, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var pending []*types.Referral
	if err := transaction.WithContext(ctx).
		Where("referred_user_id = ? AND status = ?", referredUserID, types.ReferralPending).
		Find(&pending).Error; err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	now := time.Now()
	if err := transaction.WithContext(ctx).
		Model(&types.Referral{}).
		Where("referred_user_id = ? AND status = ?", referredUserID, types.ReferralPending).
		Updates(map[string]interface{}{
			"status":       types.ReferralCompleted,
			"completed_at": now,
		}).Error; err != nil {
		return nil, err
	}
	for _, ref := range pending {
		ref.Status = types.ReferralCompleted
		ref.CompletedAt = &now
	}
	return pending, nil
}
