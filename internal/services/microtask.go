package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

var (
	ErrTaskUnavailable  = errors.New("microtask is no longer available")
	ErrAlreadySubmitted = errors.New("microtask already attempted by this user")
	ErrEmptySubmission  = errors.New("submission has no content")
	ErrWrongSubmission  = errors.New("submission variant does not match task type")
)

// LinkValidationSubmission reports whether a URL resolves and what it shows.
type LinkValidationSubmission struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Notes     string `json:"notes,omitempty"`
}

// TranscriptionSubmission carries transcribed text.
type TranscriptionSubmission struct {
	Text string `json:"text"`
}

// FeedbackSubmission carries structured product feedback.
type FeedbackSubmission struct {
	Rating   int      `json:"rating"`
	Comments string   `json:"comments"`
	Tags     []string `json:"tags,omitempty"`
}

// TaskSubmission is one-of: exactly one typed variant should be set for the
// task types that have one; Fields covers the open-ended types.
type TaskSubmission struct {
	LinkValidation *LinkValidationSubmission `json:"link_validation,omitempty"`
	Transcription  *TranscriptionSubmission  `json:"transcription,omitempty"`
	Feedback       *FeedbackSubmission       `json:"feedback,omitempty"`
	Fields         map[string]interface{}    `json:"fields,omitempty"`
}

// SubmissionOutcome reports what happened to a submission. Payout is nil
// unless the task auto-approved.
type SubmissionOutcome struct {
	CompletionID    int64                  `json:"completion_id"`
	Status          types.SubmissionStatus `json:"status"`
	ValidationScore float64                `json:"validation_score"`
	Payout          *PayoutResult          `json:"payout,omitempty"`
}

type MicrotaskService interface {
	AvailableTasks(ctx context.Context, userID uuid.UUID) ([]*types.Microtask, error)
	GetTask(ctx context.Context, taskID int64) (*types.Microtask, error)
	Submit(ctx context.Context, userID uuid.UUID, taskID int64, submission TaskSubmission, timeSpentSeconds int) (*SubmissionOutcome, error)
	UserCompletions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.MicrotaskCompletion, CompletionSummary, error)
}

// CompletionSummary aggregates a user's microtask history. TotalEarned counts
// approved submissions only.
type CompletionSummary struct {
	Total         int     `json:"total"`
	Approved      int     `json:"approved"`
	PendingReview int     `json:"pending_review"`
	Rejected      int     `json:"rejected"`
	TotalEarned   float64 `json:"total_earned"`
}

type microtaskService struct {
	log         *logger.Logger
	profiles    repos.ProfileRepo
	tasks       repos.MicrotaskRepo
	completions repos.MicrotaskCompletionRepo
	payouts     PayoutService
}

func NewMicrotaskService(
	log *logger.Logger,
	profiles repos.ProfileRepo,
	tasks repos.MicrotaskRepo,
	completions repos.MicrotaskCompletionRepo,
	payouts PayoutService,
) MicrotaskService {
	return &microtaskService{
		log:         log.With("service", "MicrotaskService"),
		profiles:    profiles,
		tasks:       tasks,
		completions: completions,
		payouts:     payouts,
	}
}

func (s *microtaskService) AvailableTasks(ctx context.Context, userID uuid.UUID) ([]*types.Microtask, error) {
	return s.tasks.ListAvailable(ctx, nil, userID)
}

func (s *microtaskService) GetTask(ctx context.Context, taskID int64) (*types.Microtask, error) {
	return s.tasks.GetByID(ctx, nil, taskID)
}

func (s *microtaskService) UserCompletions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.MicrotaskCompletion, CompletionSummary, error) {
	completions, err := s.completions.ListByUser(ctx, nil, userID, limit)
	if err != nil {
		return nil, CompletionSummary{}, err
	}
	summary := CompletionSummary{Total: len(completions)}
	for _, c := range completions {
		switch c.Status {
		case types.SubmissionApproved:
			summary.Approved++
			summary.TotalEarned += c.PayoutAmount
		case types.SubmissionPendingReview:
			summary.PendingReview++
		case types.SubmissionRejected:
			summary.Rejected++
		}
	}
	return completions, summary, nil
}

// Submit validates the submission against the task's rules, stores it, and
// auto-approves when the score clears the task's accuracy bar. Approved
// submissions pay immediately through the normal payout path; everything
// else parks in pending_review for a human.
func (s *microtaskService) Submit(ctx context.Context, userID uuid.UUID, taskID int64, submission TaskSubmission, timeSpentSeconds int) (*SubmissionOutcome, error) {
	profile, err := s.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.GetByID(ctx, nil, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Available(time.Now()) {
		return nil, ErrTaskUnavailable
	}

	fields, err := submissionFields(task.TaskType, submission)
	if err != nil {
		return nil, err
	}

	score := validateSubmission(task, fields)
	status := types.SubmissionPendingReview
	if score >= task.RequiredAccuracy {
		status = types.SubmissionApproved
	}

	raw, _ := json.Marshal(fields)
	now := time.Now()
	completion := &types.MicrotaskCompletion{
		MicrotaskID:      task.ID,
		UserID:           userID,
		ProfileID:        profile.ID,
		Status:           status,
		SubmissionData:   raw,
		ValidationScore:  score,
		PayoutAmount:     task.Payout,
		PayoutStatus:     types.PayoutStatusPending,
		TimeSpentSeconds: timeSpentSeconds,
		SubmittedAt:      now,
	}
	if status == types.SubmissionApproved {
		completion.ReviewedAt = &now
	}

	if _, err := s.completions.Create(ctx, nil, completion); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}

	outcome := &SubmissionOutcome{
		CompletionID:    completion.ID,
		Status:          status,
		ValidationScore: score,
	}
	if status != types.SubmissionApproved {
		s.log.Info("Submission parked for review",
			"task_id", task.ID,
			"user_id", userID.String(),
			"score", score)
		return outcome, nil
	}

	if err := s.tasks.IncrementCompletedSlots(ctx, nil, task.ID); err != nil {
		s.log.Error("Failed to bump completed slots", "task_id", task.ID, "error", err)
	}

	payout, payErr := s.payouts.ProcessPayout(ctx, profile, task.Payout, types.EarningSourceMicrotask, completion.ID)
	if payErr != nil {
		s.log.Warn("Microtask payout not disbursed", "task_id", task.ID, "error", payErr)
	}
	outcome.Payout = payout

	payoutStatus := types.PayoutStatusPending
	if payout != nil && payout.Disbursed > 0 {
		payoutStatus = types.PayoutStatusCompleted
	}
	if err := s.completions.UpdatePayoutStatus(ctx, nil, completion.ID, payoutStatus); err != nil {
		s.log.Error("Failed to update payout status", "completion_id", completion.ID, "error", err)
	}
	return outcome, nil
}

// submissionFields flattens the typed variant into the generic field map the
// validator and the jsonb column both use.
func submissionFields(taskType types.TaskType, submission TaskSubmission) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	for k, v := range submission.Fields {
		fields[k] = v
	}

	switch taskType {
	case types.TaskLinkValidation:
		if submission.LinkValidation == nil {
			if len(fields) == 0 {
				return nil, ErrWrongSubmission
			}
			break
		}
		fields["url"] = submission.LinkValidation.URL
		fields["reachable"] = submission.LinkValidation.Reachable
		if submission.LinkValidation.Notes != "" {
			fields["notes"] = submission.LinkValidation.Notes
		}
	case types.TaskTextTranscription:
		if submission.Transcription == nil {
			if len(fields) == 0 {
				return nil, ErrWrongSubmission
			}
			break
		}
		fields["text"] = submission.Transcription.Text
	case types.TaskFeedbackCollection:
		if submission.Feedback == nil {
			if len(fields) == 0 {
				return nil, ErrWrongSubmission
			}
			break
		}
		fields["rating"] = submission.Feedback.Rating
		fields["comments"] = submission.Feedback.Comments
		fields["tags"] = submission.Feedback.Tags
	default:
		if len(fields) == 0 {
			return nil, ErrEmptySubmission
		}
	}

	if len(fields) == 0 {
		return nil, ErrEmptySubmission
	}
	return fields, nil
}

type validationRules struct {
	RequiredFields []string       `json:"required_fields"`
	MinLength      map[string]int `json:"min_length"`
	MinTags        int            `json:"min_tags"`
}

// validateSubmission scores a submission against the task's declared rules.
// The score starts at 1.0 and loses weight per violated rule class; a task
// with no rules always scores 1.0.
func validateSubmission(task *types.Microtask, fields map[string]interface{}) float64 {
	var rules validationRules
	if len(task.ValidationRules) > 0 {
		if err := json.Unmarshal(task.ValidationRules, &rules); err != nil {
			return 1.0
		}
	}

	score := 1.0

	if len(rules.RequiredFields) > 0 {
		missing := 0
		for _, name := range rules.RequiredFields {
			if isEmptyField(fields[name]) {
				missing++
			}
		}
		score -= 0.5 * float64(missing) / float64(len(rules.RequiredFields))
	}

	for name, min := range rules.MinLength {
		if text, ok := fields[name].(string); ok && len(strings.TrimSpace(text)) < min {
			score -= 0.2
			break
		}
	}

	if rules.MinTags > 0 {
		if tagCount(fields["tags"]) < rules.MinTags {
			score -= 0.3
		}
	}

	return clamp01(score)
}

func isEmptyField(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func tagCount(value interface{}) int {
	switch v := value.(type) {
	case []string:
		return len(v)
	case []interface{}:
		return len(v)
	default:
		return 0
	}
}
