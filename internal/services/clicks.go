package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

// ClickOutcome is returned to the frontend so it can redirect immediately.
type ClickOutcome struct {
	ClickID  int64  `json:"click_id"`
	ClickURL string `json:"click_url"`
}

// ClickService records the moment a user follows an offer. The snapshot of
// the score shown at click time is what makes postback feedback attributable.
type ClickService interface {
	TrackClick(ctx context.Context, userID uuid.UUID, surveyID int64, matchScore float64) (*ClickOutcome, error)
}

type clickService struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
	surveys  repos.SurveyRepo
	clicks   repos.SurveyClickRepo
}

func NewClickService(log *logger.Logger, profiles repos.ProfileRepo, surveys repos.SurveyRepo, clicks repos.SurveyClickRepo) ClickService {
	return &clickService{
		log:      log.With("service", "ClickService"),
		profiles: profiles,
		surveys:  surveys,
		clicks:   clicks,
	}
}

func (s *clickService) TrackClick(ctx context.Context, userID uuid.UUID, surveyID int64, matchScore float64) (*ClickOutcome, error) {
	profile, err := s.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	survey, err := s.surveys.GetByID(ctx, nil, surveyID)
	if err != nil {
		return nil, err
	}

	click, err := s.clicks.Create(ctx, nil, &types.SurveyClick{
		SurveyID:       survey.ID,
		UserID:         userID,
		ProfileID:      profile.ID,
		ExpectedReward: survey.Reward,
		MatchScore:     matchScore,
		ClickedAt:      time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.surveys.IncrementClicks(ctx, nil, survey.ID); err != nil {
		s.log.Error("Failed to bump click counter", "survey_id", survey.ID, "error", err)
	}

	return &ClickOutcome{ClickID: click.ID, ClickURL: survey.ClickURL}, nil
}
