package repos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

func testSetup(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
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
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, log
}

func TestCompletionFeedback_DuplicateKeyTranslation(t *testing.T) {
	db, log := testSetup(t)
	repo := NewCompletionFeedbackRepo(db, log)
	userID := uuid.New()

	row := &types.CompletionFeedback{
		UserID: userID, Provider: "cpx", TransactionID: "tx-1", Result: types.ResultCompleted,
	}
	if _, err := repo.Create(context.Background(), nil, row); err != nil {
		t.Fatalf("first create: %v", err)
	}

	again := &types.CompletionFeedback{
		UserID: userID, Provider: "cpx", TransactionID: "tx-1", Result: types.ResultCompleted,
	}
	if _, err := repo.Create(context.Background(), nil, again); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("err = %v, want gorm.ErrDuplicatedKey", err)
	}

	// Same transaction id under a different provider is a different event.
	other := &types.CompletionFeedback{
		UserID: userID, Provider: "other", TransactionID: "tx-1", Result: types.ResultCompleted,
	}
	if _, err := repo.Create(context.Background(), nil, other); err != nil {
		t.Fatalf("other provider create: %v", err)
	}
}

func TestUserEarnings_IncrementUpserts(t *testing.T) {
	db, log := testSetup(t)
	repo := NewUserEarningsRepo(db, log)
	userID := uuid.New()

	if err := repo.Increment(context.Background(), nil, userID, 2026, 5.00, "survey"); err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if err := repo.Increment(context.Background(), nil, userID, 2026, 2.00, "referral"); err != nil {
		t.Fatalf("second increment: %v", err)
	}

	earnings, err := repo.GetByUserAndYear(context.Background(), nil, userID, 2026)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if earnings.TotalEarnings != 7.00 {
		t.Fatalf("total = %v, want 7.00", earnings.TotalEarnings)
	}
	if earnings.SurveyEarnings != 5.00 || earnings.ReferralEarnings != 2.00 {
		t.Fatalf("split = %v/%v, want 5.00/2.00", earnings.SurveyEarnings, earnings.ReferralEarnings)
	}

	// Different year is a separate row.
	if err := repo.Increment(context.Background(), nil, userID, 2027, 1.00, "survey"); err != nil {
		t.Fatalf("next year increment: %v", err)
	}
	earnings, _ = repo.GetByUserAndYear(context.Background(), nil, userID, 2027)
	if earnings.TotalEarnings != 1.00 {
		t.Fatalf("2027 total = %v, want 1.00", earnings.TotalEarnings)
	}
}

func TestUserEarnings_MissingYearIsZero(t *testing.T) {
	db, log := testSetup(t)
	repo := NewUserEarningsRepo(db, log)

	earnings, err := repo.GetByUserAndYear(context.Background(), nil, uuid.New(), 2026)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if earnings.TotalEarnings != 0 {
		t.Fatalf("total = %v, want 0", earnings.TotalEarnings)
	}
}

func TestCompletionStats_RecordAttemptArithmetic(t *testing.T) {
	db, log := testSetup(t)
	repo := NewCompletionStatsRepo(db, log)
	userID := uuid.New()

	// Two completions and one miss: 66.67% rate, avg time over completions.
	if err := repo.RecordAttempt(context.Background(), nil, userID, true, 120); err != nil {
		t.Fatalf("attempt 1: %v", err)
	}
	if err := repo.RecordAttempt(context.Background(), nil, userID, false, 30); err != nil {
		t.Fatalf("attempt 2: %v", err)
	}
	if err := repo.RecordAttempt(context.Background(), nil, userID, true, 240); err != nil {
		t.Fatalf("attempt 3: %v", err)
	}

	stats, err := repo.GetByUserID(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stats.TotalAttempts != 3 || stats.CompletedSurveys != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", stats.TotalAttempts, stats.CompletedSurveys)
	}
	// Upsert keyed on user_id: three attempts, one row.
	var rowCount int64
	if err := db.Model(&types.CompletionStats{}).Where("user_id = ?", userID).Count(&rowCount).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if rowCount != 1 {
		t.Fatalf("rows = %d, want 1", rowCount)
	}
	if math.Abs(stats.CompletionRate-200.0/3.0) > 1e-9 {
		t.Fatalf("rate = %v, want %v", stats.CompletionRate, 200.0/3.0)
	}
	// (2 + 4) minutes over two completions.
	if math.Abs(stats.AvgSurveyTime-3.0) > 1e-9 {
		t.Fatalf("avg time = %v, want 3.0", stats.AvgSurveyTime)
	}
}

func TestPendingEarnings_SumAndClear(t *testing.T) {
	db, log := testSetup(t)
	repo := NewPendingEarningRepo(db, log)
	userID := uuid.New()
	otherID := uuid.New()

	for _, amount := range []float64{1.25, 2.50} {
		if _, err := repo.Add(context.Background(), nil, &types.PendingEarning{
			UserID: userID, Amount: amount, Source: types.EarningSourceSurvey,
		}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := repo.Add(context.Background(), nil, &types.PendingEarning{
		UserID: otherID, Amount: 9.99, Source: types.EarningSourceSurvey,
	}); err != nil {
		t.Fatalf("add other: %v", err)
	}

	sum, ids, err := repo.SumPendingForUpdate(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 3.75 {
		t.Fatalf("sum = %v, want 3.75", sum)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 rows", ids)
	}

	if err := repo.ClearPending(context.Background(), nil, userID, ids); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sum, _ = repo.SumPending(context.Background(), nil, userID)
	if sum != 0 {
		t.Fatalf("sum after clear = %v, want 0", sum)
	}

	// The other user's ledger is untouched.
	sum, _ = repo.SumPending(context.Background(), nil, otherID)
	if sum != 9.99 {
		t.Fatalf("other sum = %v, want 9.99", sum)
	}
}

func TestPendingEarnings_ClearOnlyTouchesSummedRows(t *testing.T) {
	db, log := testSetup(t)
	repo := NewPendingEarningRepo(db, log)
	userID := uuid.New()

	if _, err := repo.Add(context.Background(), nil, &types.PendingEarning{
		UserID: userID, Amount: 2.00, Source: types.EarningSourceSurvey,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	sum, ids, err := repo.SumPendingForUpdate(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 2.00 || len(ids) != 1 {
		t.Fatalf("sum = %v ids = %v", sum, ids)
	}

	// A row landing between the sum and the clear, as a concurrent referral
	// bonus would. It was not in the total, so it must stay pending.
	late, err := repo.Add(context.Background(), nil, &types.PendingEarning{
		UserID: userID, Amount: 1.00, Source: types.EarningSourceReferral,
	})
	if err != nil {
		t.Fatalf("add late: %v", err)
	}

	if err := repo.ClearPending(context.Background(), nil, userID, ids); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sum, remaining, err := repo.SumPendingForUpdate(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("resum: %v", err)
	}
	if sum != 1.00 || len(remaining) != 1 || remaining[0] != late.ID {
		t.Fatalf("after clear: sum = %v ids = %v, want the late 1.00 row", sum, remaining)
	}
}

func TestPendingEarnings_ClearWithNoRowsIsNoop(t *testing.T) {
	db, log := testSetup(t)
	repo := NewPendingEarningRepo(db, log)
	userID := uuid.New()

	if _, err := repo.Add(context.Background(), nil, &types.PendingEarning{
		UserID: userID, Amount: 4.00, Source: types.EarningSourceSurvey,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.ClearPending(context.Background(), nil, userID, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sum, _ := repo.SumPending(context.Background(), nil, userID)
	if sum != 4.00 {
		t.Fatalf("sum = %v, want 4.00 untouched", sum)
	}
}

func TestSurveyClick_LatestIsNilWhenAbsent(t *testing.T) {
	db, log := testSetup(t)
	repo := NewSurveyClickRepo(db, log)

	click, err := repo.LatestByUserAndSurvey(context.Background(), nil, uuid.New(), 42)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if click != nil {
		t.Fatalf("click = %+v, want nil", click)
	}
}
