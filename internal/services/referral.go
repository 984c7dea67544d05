package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

// Flat bonus paid to the referrer once the referred user completes their
// first survey.
const referralBonus = 1.0

var ErrSelfReferral = errors.New("users cannot refer themselves")

// ReferralStats backs the referral dashboard.
type ReferralStats struct {
	ReferralCode   string            `json:"referral_code"`
	TotalReferrals int               `json:"total_referrals"`
	Completed      int               `json:"completed"`
	Pending        int               `json:"pending"`
	BonusPerSignup float64           `json:"bonus_per_signup"`
	Referrals      []*types.Referral `json:"referrals"`
}

type ReferralService interface {
	TrackSignup(ctx context.Context, code string, referredUserID uuid.UUID) (*types.Referral, error)
	Stats(ctx context.Context, userID uuid.UUID) (*ReferralStats, error)
	CompleteForUser(ctx context.Context, referredUserID uuid.UUID) error
}

type referralService struct {
	log       *logger.Logger
	profiles  repos.ProfileRepo
	referrals repos.ReferralRepo
	payouts   PayoutService
}

func NewReferralService(log *logger.Logger, profiles repos.ProfileRepo, referrals repos.ReferralRepo, payouts PayoutService) ReferralService {
	return &referralService{
		log:       log.With("service", "ReferralService"),
		profiles:  profiles,
		referrals: referrals,
		payouts:   payouts,
	}
}

// TrackSignup records a pending referral when a new user arrives with a
// code. The bonus is earned later, on the referred user's first completion.
func (s *referralService) TrackSignup(ctx context.Context, code string, referredUserID uuid.UUID) (*types.Referral, error) {
	referrer, err := s.profiles.GetByReferralCode(ctx, nil, code)
	if err != nil {
		return nil, err
	}
	if referrer.UserID == referredUserID {
		return nil, ErrSelfReferral
	}

	referral, err := s.referrals.Create(ctx, nil, &types.Referral{
		ReferrerID:     referrer.UserID,
		ReferredUserID: referredUserID,
		ReferralCode:   code,
		Status:         types.ReferralPending,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Tracked referral signup",
		"referrer_id", referrer.UserID.String(),
		"referred_user_id", referredUserID.String())
	return referral, nil
}

func (s *referralService) Stats(ctx context.Context, userID uuid.UUID) (*ReferralStats, error) {
	profile, err := s.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	referrals, err := s.referrals.ListByReferrer(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	stats := &ReferralStats{
		ReferralCode:   profile.ReferralCode,
		TotalReferrals: len(referrals),
		BonusPerSignup: referralBonus,
		Referrals:      referrals,
	}
	for _, ref := range referrals {
		if ref.Status == types.ReferralCompleted {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}

// CompleteForUser pays out any pending referrals for a user who just
// finished their first survey. A bonus that fails to disburse still lands in
// the referrer's pending balance, so errors here are logged, not returned.
func (s *referralService) CompleteForUser(ctx context.Context, referredUserID uuid.UUID) error {
	completed, err := s.referrals.CompletePending(ctx, nil, referredUserID)
	if err != nil {
		return err
	}
	for _, ref := range completed {
		if _, err := s.payouts.ProcessReferralPayout(ctx, ref.ReferrerID, referralBonus, ref.ID); err != nil {
			s.log.Warn("Referral bonus not disbursed",
				"referrer_id", ref.ReferrerID.String(),
				"referral_id", ref.ID,
				"error", err)
		}
	}
	return nil
}
