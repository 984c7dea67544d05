package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

type fakeTips struct {
	err     error
	credits []float64
	lastID  string
}

func (f *fakeTips) CreditBalance(ctx context.Context, discordID string, amount float64, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.credits = append(f.credits, amount)
	f.lastID = discordID
	return nil
}

func (f *fakeTips) GetBalance(ctx context.Context, discordID string) (float64, error) {
	return 0, nil
}

func (f *fakeTips) LinkAccount(ctx context.Context, userID, discordID string) error {
	return nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Profile{},
		&types.Survey{},
		&types.SurveyClick{},
		&types.CompletionFeedback{},
		&types.CompletionStats{},
		&types.PendingEarning{},
		&types.UserEarnings{},
		&types.PayoutTransaction{},
		&types.Microtask{},
		&types.MicrotaskCompletion{},
		&types.Referral{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type payoutFixture struct {
	db      *gorm.DB
	tips    *fakeTips
	svc     PayoutService
	pending repos.PendingEarningRepo
	txns    repos.PayoutTransactionRepo
}

func newPayoutFixture(t *testing.T) *payoutFixture {
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
	return &payoutFixture{
		db:      db,
		tips:    tips,
		svc:     NewPayoutService(log, db, tips, profileRepo, pendingRepo, earningsRepo, txnRepo),
		pending: pendingRepo,
		txns:    txnRepo,
	}
}

func seedProfile(t *testing.T, db *gorm.DB, profile *types.Profile) *types.Profile {
	t.Helper()
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if profile.UserID == uuid.Nil {
		profile.UserID = uuid.New()
	}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return profile
}

func TestProcessPayout_BelowThresholdBanks(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})

	// 3.00 pending, 1.00 new: total 4.00 stays banked.
	if _, err := f.pending.Add(context.Background(), nil, &types.PendingEarning{
		UserID: profile.UserID, Amount: 3.00, Source: types.EarningSourceSurvey,
	}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	result, err := f.svc.ProcessPayout(context.Background(), profile, 1.00, types.EarningSourceSurvey, 1)
	if err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}
	if result.Disbursed != 0 || result.Deferred != 4.00 {
		t.Fatalf("result = %+v, want all 4.00 deferred", result)
	}
	if len(f.tips.credits) != 0 {
		t.Fatalf("no credit expected, got %v", f.tips.credits)
	}

	sum, err := f.pending.SumPending(context.Background(), nil, profile.UserID)
	if err != nil {
		t.Fatalf("SumPending: %v", err)
	}
	if sum != 4.00 {
		t.Fatalf("pending sum = %v, want 4.00", sum)
	}
}

func TestProcessPayout_CrossingThresholdDisbursesTotal(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})

	if _, err := f.pending.Add(context.Background(), nil, &types.PendingEarning{
		UserID: profile.UserID, Amount: 3.00, Source: types.EarningSourceSurvey,
	}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	result, err := f.svc.ProcessPayout(context.Background(), profile, 2.50, types.EarningSourceSurvey, 2)
	if err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}
	if result.Disbursed != 5.50 {
		t.Fatalf("disbursed = %v, want 5.50", result.Disbursed)
	}
	if result.TransactionID == "" {
		t.Fatalf("expected transaction id")
	}
	if len(f.tips.credits) != 1 || f.tips.credits[0] != 5.50 {
		t.Fatalf("credits = %v, want [5.50]", f.tips.credits)
	}
	if f.tips.lastID != "discord-1" {
		t.Fatalf("credited %q, want discord-1", f.tips.lastID)
	}

	sum, err := f.pending.SumPending(context.Background(), nil, profile.UserID)
	if err != nil {
		t.Fatalf("SumPending: %v", err)
	}
	if sum != 0 {
		t.Fatalf("pending sum = %v, want 0 after disbursement", sum)
	}

	txns, err := f.txns.RecentByUser(context.Background(), nil, profile.UserID, 10)
	if err != nil {
		t.Fatalf("RecentByUser: %v", err)
	}
	if len(txns) != 1 || txns[0].Status != types.PayoutStatusCompleted {
		t.Fatalf("txns = %+v, want one completed", txns)
	}
}

func TestProcessPayout_WalletBanksWithTypedError(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		WalletAddress:    "0xabc",
		PayoutPreference: types.PayoutPreferenceWallet,
		MinimumPayout:    5,
	})

	result, err := f.svc.ProcessPayout(context.Background(), profile, 10.00, types.EarningSourceSurvey, 3)
	if !errors.Is(err, ErrWalletPayoutUnsupported) {
		t.Fatalf("err = %v, want ErrWalletPayoutUnsupported", err)
	}
	if result == nil || result.Deferred != 10.00 {
		t.Fatalf("result = %+v, want 10.00 deferred", result)
	}

	sum, _ := f.pending.SumPending(context.Background(), nil, profile.UserID)
	if sum != 10.00 {
		t.Fatalf("pending sum = %v, want 10.00 banked", sum)
	}
}

func TestProcessPayout_SplitRouting(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceSplit,
		MinimumPayout:    5,
	})

	// Below the split threshold the whole total rides the Discord balance.
	result, err := f.svc.ProcessPayout(context.Background(), profile, 10.00, types.EarningSourceSurvey, 4)
	if err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}
	if result.Disbursed != 10.00 {
		t.Fatalf("disbursed = %v, want 10.00", result.Disbursed)
	}

	// At or above the threshold the total defers for the wallet leg.
	result, err = f.svc.ProcessPayout(context.Background(), profile, 30.00, types.EarningSourceSurvey, 5)
	if err != nil {
		t.Fatalf("ProcessPayout: %v", err)
	}
	if result.Deferred != 30.00 {
		t.Fatalf("deferred = %v, want 30.00", result.Deferred)
	}
}

func TestProcessPayout_NoDiscordBanks(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})

	result, err := f.svc.ProcessPayout(context.Background(), profile, 8.00, types.EarningSourceSurvey, 6)
	if !errors.Is(err, ErrDiscordNotLinked) {
		t.Fatalf("err = %v, want ErrDiscordNotLinked", err)
	}
	if result.Deferred != 8.00 {
		t.Fatalf("deferred = %v, want 8.00", result.Deferred)
	}
}

func TestProcessPayout_CreditFailureBanksAndRecords(t *testing.T) {
	f := newPayoutFixture(t)
	f.tips.err = errors.New("service down")
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})

	result, err := f.svc.ProcessPayout(context.Background(), profile, 7.00, types.EarningSourceSurvey, 7)
	if !errors.Is(err, ErrCreditFailed) {
		t.Fatalf("err = %v, want ErrCreditFailed", err)
	}
	if result.Deferred != 7.00 {
		t.Fatalf("deferred = %v, want 7.00", result.Deferred)
	}

	// Money stays in the ledger and the failed attempt leaves a record.
	sum, _ := f.pending.SumPending(context.Background(), nil, profile.UserID)
	if sum != 7.00 {
		t.Fatalf("pending sum = %v, want 7.00", sum)
	}
	txns, _ := f.txns.RecentByUser(context.Background(), nil, profile.UserID, 10)
	if len(txns) != 1 || txns[0].Status != types.PayoutStatusFailed {
		t.Fatalf("txns = %+v, want one failed", txns)
	}
	if txns[0].ErrorMessage == "" {
		t.Fatalf("expected error message on failed txn")
	}
}

func TestManualPayout_BypassesThreshold(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    50,
	})

	if _, err := f.pending.Add(context.Background(), nil, &types.PendingEarning{
		UserID: profile.UserID, Amount: 2.00, Source: types.EarningSourceSurvey,
	}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	result, err := f.svc.ManualPayout(context.Background(), profile.UserID)
	if err != nil {
		t.Fatalf("ManualPayout: %v", err)
	}
	if result.Disbursed != 2.00 {
		t.Fatalf("disbursed = %v, want 2.00", result.Disbursed)
	}
}

func TestManualPayout_EmptyBalance(t *testing.T) {
	f := newPayoutFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
	})

	if _, err := f.svc.ManualPayout(context.Background(), profile.UserID); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("err = %v, want ErrNothingPending", err)
	}
}
