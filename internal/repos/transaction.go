package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

type PayoutTransactionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, txn *types.PayoutTransaction) (*types.PayoutTransaction, error)
	RecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.PayoutTransaction, error)
}

type payoutTransactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPayoutTransactionRepo(db *gorm.DB, baseLog *logger.Logger) PayoutTransactionRepo {
	return &payoutTransactionRepo{db: db, log: baseLog.With("repo", "PayoutTransactionRepo")}
}

func (r *payoutTransactionRepo) Create(ctx context.Context, tx *gorm.DB, txn *types.PayoutTransaction) (*types.PayoutTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *payoutTransactionRepo) RecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.PayoutTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}

	var results []*types.PayoutTransaction
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
