package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

type microtaskFixture struct {
	db   *gorm.DB
	tips *fakeTips
	svc  MicrotaskService
}

func newMicrotaskFixture(t *testing.T) *microtaskFixture {
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
	taskRepo := repos.NewMicrotaskRepo(db, log)
	completionRepo := repos.NewMicrotaskCompletionRepo(db, log)

	payouts := NewPayoutService(log, db, tips, profileRepo, pendingRepo, earningsRepo, txnRepo)
	return &microtaskFixture{
		db:   db,
		tips: tips,
		svc:  NewMicrotaskService(log, profileRepo, taskRepo, completionRepo, payouts),
	}
}

func seedTask(t *testing.T, db *gorm.DB, task *types.Microtask) *types.Microtask {
	t.Helper()
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestValidateSubmission_RuleScoring(t *testing.T) {
	rules := datatypes.JSON(`{"required_fields":["url","reachable"],"min_length":{"notes":10},"min_tags":2}`)

	cases := []struct {
		name   string
		fields map[string]interface{}
		want   float64
	}{
		{
			"all rules satisfied",
			map[string]interface{}{
				"url": "https://example.com", "reachable": true,
				"notes": "loads fine, no redirects",
				"tags":  []string{"ok", "fast"},
			},
			1.0,
		},
		{
			"half the required fields missing",
			map[string]interface{}{
				"url":   "https://example.com",
				"notes": "loads fine, no redirects",
				"tags":  []string{"ok", "fast"},
			},
			0.75,
		},
		{
			"short text",
			map[string]interface{}{
				"url": "https://example.com", "reachable": true,
				"notes": "ok",
				"tags":  []string{"ok", "fast"},
			},
			0.8,
		},
		{
			"too few tags",
			map[string]interface{}{
				"url": "https://example.com", "reachable": true,
				"notes": "loads fine, no redirects",
				"tags":  []string{"ok"},
			},
			0.7,
		},
		{
			"everything wrong",
			map[string]interface{}{"notes": "x"},
			0.0,
		},
	}
	for _, tc := range cases {
		task := &types.Microtask{ValidationRules: rules}
		approx(t, validateSubmission(task, tc.fields), tc.want, tc.name)
	}
}

func TestValidateSubmission_NoRules(t *testing.T) {
	task := &types.Microtask{}
	approx(t, validateSubmission(task, map[string]interface{}{"anything": 1}), 1.0, "no rules")
}

func TestSubmit_AutoApprovesAndPays(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})
	task := seedTask(t, f.db, &types.Microtask{
		Title:            "Check link",
		TaskType:         types.TaskLinkValidation,
		Payout:           6.00,
		TotalSlots:       10,
		RequiredAccuracy: 0.8,
		Active:           true,
		ValidationRules:  datatypes.JSON(`{"required_fields":["url","reachable"]}`),
	})

	outcome, err := f.svc.Submit(context.Background(), profile.UserID, task.ID, TaskSubmission{
		LinkValidation: &LinkValidationSubmission{URL: "https://example.com", Reachable: true},
	}, 45)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Status != types.SubmissionApproved {
		t.Fatalf("status = %q, want approved", outcome.Status)
	}
	approx(t, outcome.ValidationScore, 1.0, "score")
	if outcome.Payout == nil || outcome.Payout.Disbursed != 6.00 {
		t.Fatalf("payout = %+v, want 6.00 disbursed", outcome.Payout)
	}

	var task2 types.Microtask
	if err := f.db.First(&task2, task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if task2.CompletedSlots != 1 {
		t.Fatalf("completed slots = %d, want 1", task2.CompletedSlots)
	}
}

func TestSubmit_LowScoreParksForReview(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{DiscordID: "discord-1"})
	task := seedTask(t, f.db, &types.Microtask{
		Title:            "Transcribe",
		TaskType:         types.TaskTextTranscription,
		Payout:           2.00,
		RequiredAccuracy: 0.9,
		Active:           true,
		ValidationRules:  datatypes.JSON(`{"required_fields":["text"],"min_length":{"text":20}}`),
	})

	outcome, err := f.svc.Submit(context.Background(), profile.UserID, task.ID, TaskSubmission{
		Transcription: &TranscriptionSubmission{Text: "too short"},
	}, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Status != types.SubmissionPendingReview {
		t.Fatalf("status = %q, want pending_review", outcome.Status)
	}
	if outcome.Payout != nil {
		t.Fatalf("no payout expected, got %+v", outcome.Payout)
	}
	if len(f.tips.credits) != 0 {
		t.Fatalf("credits = %v, want none", f.tips.credits)
	}
}

func TestSubmit_SecondAttemptRejected(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{DiscordID: "discord-1"})
	task := seedTask(t, f.db, &types.Microtask{
		Title:    "Feedback",
		TaskType: types.TaskFeedbackCollection,
		Payout:   1.00,
		Active:   true,
	})

	submission := TaskSubmission{Feedback: &FeedbackSubmission{Rating: 4, Comments: "solid"}}
	if _, err := f.svc.Submit(context.Background(), profile.UserID, task.ID, submission, 30); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), profile.UserID, task.ID, submission, 30); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmit_VariantMustMatchTaskType(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{})
	task := seedTask(t, f.db, &types.Microtask{
		Title:    "Check link",
		TaskType: types.TaskLinkValidation,
		Payout:   1.00,
		Active:   true,
	})

	_, err := f.svc.Submit(context.Background(), profile.UserID, task.ID, TaskSubmission{
		Transcription: &TranscriptionSubmission{Text: "wrong variant"},
	}, 5)
	if !errors.Is(err, ErrWrongSubmission) {
		t.Fatalf("err = %v, want ErrWrongSubmission", err)
	}
}

func TestSubmit_InactiveTask(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{})
	task := seedTask(t, f.db, &types.Microtask{
		Title:    "Closed",
		TaskType: types.TaskLinkValidation,
		Payout:   1.00,
		Active:   false,
	})

	_, err := f.svc.Submit(context.Background(), profile.UserID, task.ID, TaskSubmission{
		LinkValidation: &LinkValidationSubmission{URL: "https://example.com"},
	}, 5)
	if !errors.Is(err, ErrTaskUnavailable) {
		t.Fatalf("err = %v, want ErrTaskUnavailable", err)
	}
}

func TestAvailableTasks_ExcludesAttempted(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{DiscordID: "discord-1"})
	attempted := seedTask(t, f.db, &types.Microtask{
		Title: "Done already", TaskType: types.TaskFeedbackCollection, Payout: 1.00, Active: true,
	})
	open := seedTask(t, f.db, &types.Microtask{
		Title: "Still open", TaskType: types.TaskFeedbackCollection, Payout: 2.00, Active: true,
	})

	if _, err := f.svc.Submit(context.Background(), profile.UserID, attempted.ID, TaskSubmission{
		Feedback: &FeedbackSubmission{Rating: 5, Comments: "done"},
	}, 20); err != nil {
		t.Fatalf("submit: %v", err)
	}

	tasks, err := f.svc.AvailableTasks(context.Background(), profile.UserID)
	if err != nil {
		t.Fatalf("AvailableTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != open.ID {
		t.Fatalf("tasks = %+v, want only the open task", tasks)
	}
}

func TestUserCompletions_Summary(t *testing.T) {
	f := newMicrotaskFixture(t)
	profile := seedProfile(t, f.db, &types.Profile{
		DiscordID:        "discord-1",
		PayoutPreference: types.PayoutPreferenceJustTheTip,
		MinimumPayout:    5,
	})
	approved := seedTask(t, f.db, &types.Microtask{
		Title: "Quick rating", TaskType: types.TaskFeedbackCollection,
		Payout: 3.00, RequiredAccuracy: 0.8, Active: true,
	})
	parked := seedTask(t, f.db, &types.Microtask{
		Title:            "Transcribe",
		TaskType:         types.TaskTextTranscription,
		Payout:           2.00,
		RequiredAccuracy: 0.9,
		Active:           true,
		ValidationRules:  datatypes.JSON(`{"required_fields":["text"],"min_length":{"text":20}}`),
	})

	if _, err := f.svc.Submit(context.Background(), profile.UserID, approved.ID, TaskSubmission{
		Feedback: &FeedbackSubmission{Rating: 4, Comments: "fine"},
	}, 30); err != nil {
		t.Fatalf("submit approved: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), profile.UserID, parked.ID, TaskSubmission{
		Transcription: &TranscriptionSubmission{Text: "too short"},
	}, 10); err != nil {
		t.Fatalf("submit parked: %v", err)
	}

	completions, summary, err := f.svc.UserCompletions(context.Background(), profile.UserID, 50)
	if err != nil {
		t.Fatalf("UserCompletions: %v", err)
	}
	if len(completions) != 2 {
		t.Fatalf("completions = %d, want 2", len(completions))
	}
	if summary.Total != 2 || summary.Approved != 1 || summary.PendingReview != 1 || summary.Rejected != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	approx(t, summary.TotalEarned, 3.00, "total earned")
}
