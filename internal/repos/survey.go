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

var ErrSurveyNotFound = errors.New("survey not found")

type SurveyRepo interface {
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Survey, error)
	GetByID(ctx context.Context, tx *gorm.DB, surveyID int64) (*types.Survey, error)
	IncrementClicks(ctx context.Context, tx *gorm.DB, surveyID int64) error
	IncrementCompletedSlots(ctx context.Context, tx *gorm.DB, surveyID int64) error
}

type surveyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSurveyRepo(db *gorm.DB, baseLog *logger.Logger) SurveyRepo {
	return &surveyRepo{db: db, log: baseLog.With("repo", "SurveyRepo")}
}

// ListActive returns offers still open for matching: active, slots left,
// not expired. Ordered by reward so the pre-score candidate order is stable.
func (r *surveyRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Survey, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Survey
	if err := transaction.WithContext(ctx).
		Where("active = ?", true).
		Where("total_slots = 0 OR completed_slots < total_slots").
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order("reward DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *surveyRepo) GetByID(ctx context.Context, tx *gorm.DB, surveyID int64) (*types.Survey, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var survey types.Survey
	if err := transaction.WithContext(ctx).First(&survey, surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}
	return &survey, nil
}

func (r *surveyRepo) IncrementClicks(ctx context.Context, tx *gorm.DB, surveyID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Survey{}).
		Where("id = ?", surveyID).
		UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error
}

func (r *surveyRepo) IncrementCompletedSlots(ctx context.Context, tx *gorm.DB, surveyID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Survey{}).
		Where("id = ?", surveyID).
		UpdateColumn("completed_slots", gorm.Expr("completed_slots + 1")).Error
}

type SurveyClickRepo interface {
	Create(ctx context.Context, tx *gorm.DB, click *types.SurveyClick) (*types.SurveyClick, error)
	LatestByUserAndSurvey(ctx context.Context, tx *gorm.DB, userID uuid.UUID, surveyID int64) (*types.SurveyClick, error)
}

type surveyClickRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSurveyClickRepo(db *gorm.DB, baseLog *logger.Logger) SurveyClickRepo {
	return &surveyClickRepo{db: db, log: baseLog.With("repo", "SurveyClickRepo")}
}

func (r *surveyClickRepo) Create(ctx context.Context, tx *gorm.DB, click *types.SurveyClick) (*types.SurveyClick, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(click).Error; err != nil {
		return nil, err
	}
	return click, nil
}

func (r *surveyClickRepo) LatestByUserAndSurvey(ctx context.Context, tx *gorm.DB, userID uuid.UUID, surveyID int64) (*types.SurveyClick, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var click types.SurveyClick
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND survey_id = ?", userID, surveyID).
		Order("clicked_at DESC").
		First(&click).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &click, nil
}
