package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

var (
	ErrMicrotaskNotFound  = errors.New("microtask not found")
	ErrCompletionNotFound = errors.New("microtask completion not found")
)

type MicrotaskRepo interface {
	ListAvailable(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Microtask, error)
	GetByID(ctx context.Context, tx *gorm.DB, taskID int64) (*types.Microtask, error)
	IncrementCompletedSlots(ctx context.Context, tx *gorm.DB, taskID int64) error
}

type microtaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMicrotaskRepo(db *gorm.DB, baseLog *logger.Logger) MicrotaskRepo {
	return &microtaskRepo{db: db, log: baseLog.With("repo", "MicrotaskRepo")}
}

// ListAvailable returns open tasks the user has not already attempted,
// highest payout first.
func (r *microtaskRepo) ListAvailable(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Microtask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	completed := transaction.WithContext(ctx).
		Model(&types.MicrotaskCompletion{}).
		Select("microtask_id").
		Where("user_id = ?", userID)

	var results []*types.Microtask
	if err := transaction.WithContext(ctx).
		Where("active = ?", true).
		Where("total_slots = 0 OR completed_slots < total_slots").
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Where("id NOT IN (?)", completed).
		Order("payout DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *microtaskRepo) GetByID(ctx context.Context, tx *gorm.DB, taskID int64) (*types.Microtask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var task types.Microtask
	if err := transaction.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMicrotaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *microtaskRepo) IncrementCompletedSlots(ctx context.Context, tx *gorm.DB, taskID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Microtask{}).
		Where("id = ?", taskID).
		UpdateColumn("completed_slots", gorm.Expr("completed_slots + 1")).Error
}

type MicrotaskCompletionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, completion *types.MicrotaskCompletion) (*types.MicrotaskCompletion, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, completionID int64, userID uuid.UUID) (*types.MicrotaskCompletion, error)
	UpdatePayoutStatus(ctx context.Context, tx *gorm.DB, completionID int64, status types.PayoutStatus) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.MicrotaskCompletion, error)
}

type microtaskCompletionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMicrotaskCompletionRepo(db *gorm.DB, baseLog *logger.Logger) MicrotaskCompletionRepo {
	return &microtaskCompletionRepo{db: db, log: baseLog.With("repo", "MicrotaskCompletionRepo")}
}

func (r *microtaskCompletionRepo) Create(ctx context.Context, tx *gorm.DB, completion *types.MicrotaskCompletion) (*types.MicrotaskCompletion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(completion).Error; err != nil {
		return nil, err
	}
	return completion, nil
}

func (r *microtaskCompletionRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, completionID int64, userID uuid.UUID) (*types.MicrotaskCompletion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var completion types.MicrotaskCompletion
	if err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", completionID, userID).
		First(&completion).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompletionNotFound
		}
		return nil, err
	}
	return &completion, nil
}

func (r *microtaskCompletionRepo) UpdatePayoutStatus(ctx context.Context, tx *gorm.DB, completionID int64, status types.PayoutStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.MicrotaskCompletion{}).
		Where("id = ?", completionID).
		UpdateColumn("payout_status", status).Error
}

func (r *microtaskCompletionRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.MicrotaskCompletion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.MicrotaskCompletion
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
