package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

type referralFixture struct {
	db   *gorm.DB
	tips *fakeTips
	svc  ReferralService
}

func newReferralFixture(t *testing.T) *referralFixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	db := testDB(t)
	tips := &fakeTips{}

	profileRepo := repos.NewProfileRepo(db, log)
	pendingRepo := repos.NewPendingEarningRepo(db, log)
	earningsRepo := repos.NewUserEarningsRepo(db, log)
	txnRepo := repos.NewPayoutTransactionRepo(db, log)
	referralRepo := repos.NewReferralRepo(db, log)

	payouts := NewPayoutService(log, db, tips, profileRepo, pendingRepo, earningsRepo, txnRepo)
	return &referralFixture{
		db:   db,
		tips: tips,
		svc:  NewReferralService(log, profileRepo, referralRepo, payouts),
	}
}

func TestTrackSignup_RecordsPendingReferral(t *testing.T) {
	f := newReferralFixture(t)
	referrer := seedProfile(t, f.db, &types.Profile{ReferralCode: "ref_abc"})
	referred := uuid.New()

	referral, err := f.svc.TrackSignup(context.Background(), "ref_abc", referred)
	if err != nil {
		t.Fatalf("TrackSignup: %v", err)
	}
	if referral.ReferrerID != referrer.UserID {
		t.Fatalf("referrer = %s, want %s", referral.ReferrerID, referrer.UserID)
	}
	if referral.Status != types.ReferralPending {
		t.Fatalf("status = %q, want pending", referral.Status)
	}
}

func TestTrackSignup_RejectsSelfAndUnknownCode(t *testing.T) {
	f := newReferralFixture(t)
	referrer := seedProfile(t, f.db, &types.Profile{ReferralCode: "ref_abc"})

	if _, err := f.svc.TrackSignup(context.Background(), "ref_abc", referrer.UserID); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("err = %v, want ErrSelfReferral", err)
	}
	if _, err := f.svc.TrackSignup(context.Background(), "nope", uuid.New()); !errors.Is(err, repos.ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestCompleteForUser_PaysBonusOnce(t *testing.T) {
	f := newReferralFixture(t)
	referrer := seedProfile(t, f.db, &types.Profile{
		ReferralCode:     "ref_abc",
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})
	referred := uuid.New()

	if _, err := f.svc.TrackSignup(context.Background(), "ref_abc", referred); err != nil {
		t.Fatalf("TrackSignup: %v", err)
	}
	if err := f.svc.CompleteForUser(context.Background(), referred); err != nil {
		t.Fatalf("CompleteForUser: %v", err)
	}

	// Bonus is below the threshold, so it lands in the referrer's pending
	// balance rather than being credited.
	log, _ := logger.New("development")
	pendingRepo := repos.NewPendingEarningRepo(f.db, log)
	sum, err := pendingRepo.SumPending(context.Background(), nil, referrer.UserID)
	if err != nil {
		t.Fatalf("SumPending: %v", err)
	}
	if sum != referralBonus {
		t.Fatalf("pending = %v, want %v", sum, referralBonus)
	}

	// A second completion call finds nothing to flip.
	if err := f.svc.CompleteForUser(context.Background(), referred); err != nil {
		t.Fatalf("second CompleteForUser: %v", err)
	}
	sum, _ = pendingRepo.SumPending(context.Background(), nil, referrer.UserID)
	if sum != referralBonus {
		t.Fatalf("pending = %v after repeat, want %v", sum, referralBonus)
	}

	stats, err := f.svc.Stats(context.Background(), referrer.UserID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Completed != 1 || stats.Pending != 0 {
		t.Fatalf("stats = %+v, want one completed", stats)
	}
}
