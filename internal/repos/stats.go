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

type CompletionStatsRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.CompletionStats, error)
	RecordAttempt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, completed bool, timeSpentSeconds int) error
}

type completionStatsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompletionStatsRepo(db *gorm.DB, baseLog *logger.Logger) CompletionStatsRepo {
	return &completionStatsRepo{db: db, log: baseLog.With("repo", "CompletionStatsRepo")}
}

func (r *completionStatsRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.CompletionStats, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var stats types.CompletionStats
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.CompletionStats{UserID: userID}, nil
		}
		return nil, err
	}
	return &stats, nil
}

// RecordAttempt folds one outcome into the running attempt counters and
// recomputes the completion rate (0-100 scale, matching the scorer's input).
// Single increment-based upsert, so concurrent postbacks for one user cannot
// lose an attempt the way a read-modify-write would. Assignment expressions
// read the pre-update values, hence the +1 offsets in the derived columns.
func (r *completionStatsRepo) RecordAttempt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, completed bool, timeSpentSeconds int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	row := types.CompletionStats{
		UserID:        userID,
		TotalAttempts: 1,
		UpdatedAt:     time.Now(),
	}
	assignments := map[string]interface{}{
		"total_attempts": gorm.Expr("total_attempts + 1"),
		"updated_at":     time.Now(),
	}
	if completed {
		minutes := float64(timeSpentSeconds) / 60.0
		row.CompletedSurveys = 1
		row.CompletionRate = 100
		row.AvgSurveyTime = minutes
		assignments["completed_surveys"] = gorm.Expr("completed_surveys + 1")
		assignments["completion_rate"] = gorm.Expr("(completed_surveys + 1) * 100.0 / (total_attempts + 1)")
		// Avg survey time only counts completed runs.
		assignments["avg_survey_time"] = gorm.Expr("(avg_survey_time * completed_surveys + ?) / (completed_surveys + 1)", minutes)
	} else {
		assignments["completion_rate"] = gorm.Expr("completed_surveys * 100.0 / (total_attempts + 1)")
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&row).Error
}
