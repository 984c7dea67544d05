package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/clients/redisdb"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

const cpxProvider = "cpx"

// ErrInvalidPostbackHash rejects a postback whose signature does not verify.
// The handler maps it to 401; everything after signature verification acks.
var ErrInvalidPostbackHash = errors.New("postback hash verification failed")

// CPXPostback is the parsed query string of a CPX Research server postback.
type CPXPostback struct {
	Status        string
	TransactionID string
	UserID        string
	SubID         string
	SubID2        string
	AmountLocal   float64
	AmountUSD     float64
	OfferID       string
	Hash          string
	ClickIP       string
	Type          string
}

// PostbackOutcome reports what processing did, for logging and tests. The
// HTTP layer acks regardless once the hash verified.
type PostbackOutcome struct {
	Duplicate bool
	Result    types.CompletionResult
	Payout    *PayoutResult
}

type WebhookService interface {
	ProcessCPXPostback(ctx context.Context, postback CPXPostback) (*PostbackOutcome, error)
}

type webhookService struct {
	log       *logger.Logger
	db        *gorm.DB
	redis     *redisdb.Service
	wall      WallService
	profiles  repos.ProfileRepo
	surveys   repos.SurveyRepo
	clicks    repos.SurveyClickRepo
	feedback  repos.CompletionFeedbackRepo
	stats     repos.CompletionStatsRepo
	payouts   PayoutService
	referrals ReferralService
}

func NewWebhookService(
	log *logger.Logger,
	db *gorm.DB,
	redis *redisdb.Service,
	wall WallService,
	profiles repos.ProfileRepo,
	surveys repos.SurveyRepo,
	clicks repos.SurveyClickRepo,
	feedback repos.CompletionFeedbackRepo,
	stats repos.CompletionStatsRepo,
	payouts PayoutService,
	referrals ReferralService,
) WebhookService {
	return &webhookService{
		log:       log.With("service", "WebhookService"),
		db:        db,
		redis:     redis,
		wall:      wall,
		profiles:  profiles,
		surveys:   surveys,
		clicks:    clicks,
		feedback:  feedback,
		stats:     stats,
		payouts:   payouts,
		referrals: referrals,
	}
}

// ProcessCPXPostback verifies, deduplicates, records, and pays.
//
// Idempotency is two layers. The redis SetNX key absorbs the common
// re-delivery burst cheaply; the (provider, transaction_id) unique index on
// the feedback table is the layer that actually guarantees exactly-once,
// because redis can lose the key.
func (s *webhookService) ProcessCPXPostback(ctx context.Context, postback CPXPostback) (*PostbackOutcome, error) {
	if !s.wall.VerifyPostbackHash(postback.TransactionID, postback.Hash) {
		s.log.Warn("Rejected postback with bad hash",
			"transaction_id", postback.TransactionID,
			"ip", postback.ClickIP)
		return nil, ErrInvalidPostbackHash
	}

	if s.redis != nil {
		fresh, err := s.redis.MarkOnce(ctx, "cpx:postback:"+postback.TransactionID, 24*time.Hour)
		if err != nil {
			s.log.Warn("Redis dedup unavailable, relying on unique index", "error", err)
		} else if !fresh {
			s.log.Info("Duplicate postback suppressed by redis", "transaction_id", postback.TransactionID)
			return &PostbackOutcome{Duplicate: true}, nil
		}
	}

	userID, err := uuid.Parse(postback.UserID)
	if err != nil {
		return nil, errors.New("user_id is not a valid uuid")
	}
	profile, err := s.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	result := resultForStatus(postback.Status)
	surveyID, _ := strconv.ParseInt(postback.OfferID, 10, 64)

	var survey *types.Survey
	if surveyID > 0 {
		survey, err = s.surveys.GetByID(ctx, nil, surveyID)
		if err != nil && !errors.Is(err, repos.ErrSurveyNotFound) {
			return nil, err
		}
	}

	click, err := s.clicks.LatestByUserAndSurvey(ctx, nil, userID, surveyID)
	if err != nil {
		return nil, err
	}
	timeSpent := 0
	if click != nil {
		timeSpent = int(time.Since(click.ClickedAt).Seconds())
	}

	reward := 0.0
	if result == types.ResultCompleted {
		reward = postback.AmountUSD
	}

	row := &types.CompletionFeedback{
		UserID:           userID,
		SurveyID:         surveyID,
		Provider:         cpxProvider,
		TransactionID:    postback.TransactionID,
		Result:           result,
		TimeSpentSeconds: timeSpent,
		RewardEarned:     reward,
		UserAttributes:   feedbackUserAttributes(profile),
		SurveyAttributes: feedbackSurveyAttributes(survey, postback),
	}
	if _, err := s.feedback.Create(ctx, nil, row); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.log.Info("Duplicate postback suppressed by unique index", "transaction_id", postback.TransactionID)
			return &PostbackOutcome{Duplicate: true, Result: result}, nil
		}
		return nil, err
	}

	if err := s.stats.RecordAttempt(ctx, nil, userID, result == types.ResultCompleted, timeSpent); err != nil {
		s.log.Error("Failed to record attempt stats", "user_id", userID.String(), "error", err)
	}

	outcome := &PostbackOutcome{Result: result}
	if result != types.ResultCompleted {
		return outcome, nil
	}

	if survey != nil {
		if err := s.surveys.IncrementCompletedSlots(ctx, nil, survey.ID); err != nil {
			s.log.Error("Failed to bump completed slots", "survey_id", survey.ID, "error", err)
		}
	}

	payout, payErr := s.payouts.ProcessPayout(ctx, profile, postback.AmountUSD, types.EarningSourceSurvey, row.ID)
	if payErr != nil {
		// Routing errors already banked the money; log and ack.
		s.log.Warn("Payout not disbursed",
			"user_id", userID.String(),
			"transaction_id", postback.TransactionID,
			"error", payErr)
	}
	outcome.Payout = payout

	// First completion also releases any referral bonus owed for this user.
	if s.referrals != nil {
		if err := s.referrals.CompleteForUser(ctx, userID); err != nil {
			s.log.Error("Failed to complete referrals", "user_id", userID.String(), "error", err)
		}
	}
	return outcome, payErr
}

// resultForStatus maps the provider's numeric status. "1" pays, "2" is a
// screener disqualification, anything else is an abandon.
func resultForStatus(status string) types.CompletionResult {
	switch strings.TrimSpace(status) {
	case "1":
		return types.ResultCompleted
	case "2":
		return types.ResultDisqualified
	default:
		return types.ResultAbandoned
	}
}

func feedbackUserAttributes(profile *types.Profile) datatypes.JSON {
	attrs := map[string]interface{}{
		"age":       profile.Age,
		"gender":    profile.Gender,
		"location":  profile.Location,
		"interests": profile.InterestList(),
	}
	raw, _ := json.Marshal(attrs)
	return raw
}

func feedbackSurveyAttributes(survey *types.Survey, postback CPXPostback) datatypes.JSON {
	attrs := map[string]interface{}{
		"offer_id":     postback.OfferID,
		"amount_usd":   postback.AmountUSD,
		"amount_local": postback.AmountLocal,
		"type":         postback.Type,
		"subid_1":      postback.SubID,
		"subid_2":      postback.SubID2,
	}
	if survey != nil {
		attrs["provider"] = survey.Provider
		attrs["reward"] = survey.Reward
		attrs["estimated_time"] = survey.EstimatedTime
	}
	raw, _ := json.Marshal(attrs)
	return raw
}
