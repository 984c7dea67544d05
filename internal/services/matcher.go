package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

// SurveyMatch pairs a survey with its score for the ranked response.
type SurveyMatch struct {
	Survey *types.Survey    `json:"survey"`
	Match  types.MatchScore `json:"match"`
}

// MatchResult is the ranked output. TotalAnalyzed counts every active offer
// inspected, including those the eligibility filter removed, so the client
// can show "12 of 240 surveys match you".
type MatchResult struct {
	Matches       []SurveyMatch `json:"matches"`
	TotalAnalyzed int           `json:"total_analyzed"`
	Eligible      int           `json:"eligible"`
}

type SurveyMatcher interface {
	TopMatches(ctx context.Context, userID uuid.UUID, limit int) (*MatchResult, error)
}

type surveyMatcher struct {
	log         *logger.Logger
	profiles    repos.ProfileRepo
	surveys     repos.SurveyRepo
	stats       repos.CompletionStatsRepo
	scorer      MatchScorer
	concurrency int
}

func NewSurveyMatcher(
	log *logger.Logger,
	profiles repos.ProfileRepo,
	surveys repos.SurveyRepo,
	stats repos.CompletionStatsRepo,
	scorer MatchScorer,
	concurrency int,
) SurveyMatcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &surveyMatcher{
		log:         log.With("service", "SurveyMatcher"),
		profiles:    profiles,
		surveys:     surveys,
		stats:       stats,
		scorer:      scorer,
		concurrency: concurrency,
	}
}

// TopMatches filters the active offers down to eligible ones, scores each
// independently, and returns them sorted by score descending. Scoring runs
// in parallel; ties keep the eligibility order (reward descending).
func (m *surveyMatcher) TopMatches(ctx context.Context, userID uuid.UUID, limit int) (*MatchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	profile, err := m.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	surveys, err := m.surveys.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	total := len(surveys)

	now := time.Now()
	eligible := make([]*types.Survey, 0, len(surveys))
	for _, survey := range surveys {
		if IsEligible(profile, survey, now) {
			eligible = append(eligible, survey)
		}
	}

	stats, err := m.stats.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	// Historical performance is per provider, shared across that provider's
	// offers in this batch.
	histByProvider := make(map[string]HistoricalPerformance)
	for _, survey := range eligible {
		if _, ok := histByProvider[survey.Provider]; !ok {
			histByProvider[survey.Provider] = m.scorer.HistoricalPerformance(ctx, survey.Provider)
		}
	}

	matches := make([]SurveyMatch, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, survey := range eligible {
		g.Go(func() error {
			matches[i] = SurveyMatch{
				Survey: survey,
				Match:  m.scorer.Score(gctx, profile, survey, stats, histByProvider[survey.Provider]),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Match.Score > matches[j].Match.Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	m.log.Info("Matched surveys",
		"user_id", userID.String(),
		"analyzed", total,
		"eligible", len(eligible),
		"returned", len(matches))

	return &MatchResult{
		Matches:       matches,
		TotalAnalyzed: total,
		Eligible:      len(eligible),
	}, nil
}

// IsEligible applies the hard demographic filter. Every rule is an
// allow-list: an unset constraint always passes. Location and device match
// case-insensitively by substring, matching how the free-text profile
// fields are collected.
func IsEligible(profile *types.Profile, survey *types.Survey, now time.Time) bool {
	if !survey.Available(now) {
		return false
	}

	age := types.AgeBracketMidpoint(profile.Age)
	if survey.MinAge != nil && age < *survey.MinAge {
		return false
	}
	if survey.MaxAge != nil && age > *survey.MaxAge {
		return false
	}

	if genders := survey.GenderList(); len(genders) > 0 {
		if !containsFold(genders, profile.Gender) {
			return false
		}
	}

	if countries := survey.CountryList(); len(countries) > 0 {
		if !matchesAnySubstring(countries, profile.Location) {
			return false
		}
	}

	if devices := survey.DeviceList(); len(devices) > 0 {
		if !matchesAnySubstring(devices, profile.Device) {
			return false
		}
	}

	return true
}

func matchesAnySubstring(allowed []string, value string) bool {
	valueLower := strings.ToLower(value)
	for _, a := range allowed {
		aLower := strings.ToLower(a)
		if strings.Contains(valueLower, aLower) || strings.Contains(aLower, valueLower) {
			return true
		}
	}
	return false
}
