package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

// PendingEarningRepo is the earnings ledger. SumPendingForUpdate takes row
// locks and reports which rows it summed, so the payout router's
// sum -> compare -> clear sequence is atomic when run inside one transaction;
// two postbacks for the same user serialize on the locked rows instead of
// double-paying, and a row inserted after the lock stays pending because
// ClearPending only touches the ids it is handed.
type PendingEarningRepo interface {
	Add(ctx context.Context, tx *gorm.DB, earning *types.PendingEarning) (*types.PendingEarning, error)
	SumPending(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error)
	SumPendingForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, []int64, error)
	ClearPending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []int64) error
}

type pendingEarningRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPendingEarningRepo(db *gorm.DB, baseLog *logger.Logger) PendingEarningRepo {
	return &pendingEarningRepo{db: db, log: baseLog.With("repo", "PendingEarningRepo")}
}

func (r *pendingEarningRepo) Add(ctx context.Context, tx *gorm.DB, earning *types.PendingEarning) (*types.PendingEarning, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if earning.Status == "" {
		earning.Status = types.EarningStatusPending
	}
	if err := transaction.WithContext(ctx).Create(earning).Error; err != nil {
		return nil, err
	}
	return earning, nil
}

func (r *pendingEarningRepo) SumPending(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error) {
	sum, _, err := r.sumPending(ctx, tx, userID, false)
	return sum, err
}

func (r *pendingEarningRepo) SumPendingForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, []int64, error) {
	return r.sumPending(ctx, tx, userID, true)
}

func (r *pendingEarningRepo) sumPending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lock bool) (float64, []int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Model(&types.PendingEarning{}).
		Where("user_id = ? AND status = ?", userID, types.EarningStatusPending)
	// Row locks only exist on postgres; sqlite serializes writers anyway.
	if lock && transaction.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []types.PendingEarning
	if err := query.Find(&rows).Error; err != nil {
		return 0, nil, err
	}
	var sum float64
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		sum += row.Amount
		ids = append(ids, row.ID)
	}
	return sum, ids, nil
}

// ClearPending flips the given rows to processed. Scoped to ids on purpose:
// FOR UPDATE locks nothing when the pending set is empty, so a row committed
// by a concurrent writer mid-payout must not be swept into a total it was
// never part of.
func (r *pendingEarningRepo) ClearPending(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PendingEarning{}).
		Where("user_id = ? AND id IN ? AND status = ?", userID, ids, types.EarningStatusPending).
		Updates(map[string]interface{}{
			"status":     types.EarningStatusProcessed,
			"updated_at": time.Now(),
		}).Error
}

type UserEarningsRepo interface {
	Increment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, year int, amount float64, category string) error
	GetByUserAndYear(ctx context.Context, tx *gorm.DB, userID uuid.UUID, year int) (*types.UserEarnings, error)
}

type userEarningsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserEarningsRepo(db *gorm.DB, baseLog *logger.Logger) UserEarningsRepo {
	return &userEarningsRepo{db: db, log: baseLog.With("repo", "UserEarningsRepo")}
}

// Increment upserts the (user, year) aggregate. category is "survey" or
// "referral"; anything else only bumps the total.
func (r *userEarningsRepo) Increment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, year int, amount float64, category string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	row := types.UserEarnings{
		UserID:        userID,
		Year:          year,
		TotalEarnings: amount,
	}
	switch category {
	case "survey":
		row.SurveyEarnings = amount
	case "referral":
		row.ReferralEarnings = amount
	}

	assignments := map[string]interface{}{
		"total_earnings": gorm.Expr("total_earnings + ?", amount),
		"updated_at":     time.Now(),
	}
	switch category {
	case "survey":
		assignments["survey_earnings"] = gorm.Expr("survey_earnings + ?", amount)
	case "referral":
		assignments["referral_earnings"] = gorm.Expr("referral_earnings + ?", amount)
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "year"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&row).Error
}

func (r *userEarningsRepo) GetByUserAndYear(ctx context.Context, tx *gorm.DB, userID uuid.UUID, year int) (*types.UserEarnings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var earnings types.UserEarnings
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		First(&earnings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.UserEarnings{UserID: userID, Year: year}, nil
		}
		return nil, err
	}
	return &earnings, nil
}
