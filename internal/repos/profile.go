package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepo is read-mostly: profiles are owned by the web-profile
// subsystem, the matching/payout core only looks them up.
type ProfileRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error)
	GetByReferralCode(ctx context.Context, tx *gorm.DB, code string) (*types.Profile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var profile types.Profile
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) GetByReferralCode(ctx context.Context, tx *gorm.DB, code string) (*types.Profile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var profile types.Profile
	if err := transaction.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}
