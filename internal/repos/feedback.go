package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

type CompletionFeedbackRepo interface {
	Create(ctx context.Context, tx *gorm.DB, feedback *types.CompletionFeedback) (*types.CompletionFeedback, error)
	ExistsByProviderTrans(ctx context.Context, tx *gorm.DB, provider, transactionID string) (bool, error)
	ListByProvider(ctx context.Context, tx *gorm.DB, provider string, limit int) ([]*types.CompletionFeedback, error)
}

type completionFeedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompletionFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) CompletionFeedbackRepo {
	return &completionFeedbackRepo{db: db, log: baseLog.With("repo", "CompletionFeedbackRepo")}
}

// Create inserts the immutable feedback row. A gorm.ErrDuplicatedKey return
// means the postback was already processed; callers treat it as an ack.
func (r *completionFeedbackRepo) Create(ctx context.Context, tx *gorm.DB, feedback *types.CompletionFeedback) (*types.CompletionFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(feedback).Error; err != nil {
		return nil, err
	}
	return feedback, nil
}

func (r *completionFeedbackRepo) ExistsByProviderTrans(ctx context.Context, tx *gorm.DB, provider, transactionID string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.CompletionFeedback{}).
		Where("provider = ? AND transaction_id = ?", provider, transactionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *completionFeedbackRepo) ListByProvider(ctx context.Context, tx *gorm.DB, provider string, limit int) ([]*types.CompletionFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}

	var results []*types.CompletionFeedback
	if err := transaction.WithContext(ctx).
		Where("provider = ?", provider).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
