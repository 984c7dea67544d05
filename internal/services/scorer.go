package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/clients/openai"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

// HistoricalPerformance aggregates past feedback for a provider, fed into
// both the AI prompt and (via CompletionStats) the heuristic path.
type HistoricalPerformance struct {
	TotalAttempts       int
	CompletedAttempts   int
	ProviderSuccessRate float64 // percentage, 0-100
	AvgReward           float64
	AvgTimeSeconds      float64
}

// MatchScorer produces a 0-1 score for a (profile, survey) pair. The AI path
// is attempted once per offer; any failure switches to the deterministic
// heuristic for that offer only.
type MatchScorer interface {
	Score(ctx context.Context, profile *types.Profile, survey *types.Survey, stats *types.CompletionStats, hist HistoricalPerformance) types.MatchScore
	HistoricalPerformance(ctx context.Context, provider string) HistoricalPerformance
}

type matchScorer struct {
	log      *logger.Logger
	ai       openai.Client
	feedback repos.CompletionFeedbackRepo
}

// NewMatchScorer accepts a nil AI client; scoring then always takes the
// heuristic path (the configured degradation when OPENAI_API_KEY is absent).
func NewMatchScorer(log *logger.Logger, ai openai.Client, feedback repos.CompletionFeedbackRepo) MatchScorer {
	return &matchScorer{
		log:      log.With("service", "MatchScorer"),
		ai:       ai,
		feedback: feedback,
	}
}

const scorerSystemPrompt = "You are an expert survey matching algorithm. Analyze user profiles and survey requirements to predict completion probability. Return a JSON score between 0-1 with detailed factors."

func (s *matchScorer) Score(ctx context.Context, profile *types.Profile, survey *types.Survey, stats *types.CompletionStats, hist HistoricalPerformance) types.MatchScore {
	if s.ai != nil {
		score, err := s.scoreWithAI(ctx, profile, survey, stats, hist)
		if err == nil {
			return score
		}
		s.log.Debug("AI scoring failed, falling back to heuristic", "survey_id", survey.ID, "error", err)
	}
	return s.heuristicScore(profile, survey, stats)
}

func (s *matchScorer) scoreWithAI(ctx context.Context, profile *types.Profile, survey *types.Survey, stats *types.CompletionStats, hist HistoricalPerformance) (types.MatchScore, error) {
	prompt := buildMatchingPrompt(profile, survey, stats, hist)

	content, err := s.ai.Complete(ctx, scorerSystemPrompt, prompt)
	if err != nil {
		return types.MatchScore{}, err
	}

	parsed, err := parseAIScore(content)
	if err != nil {
		return types.MatchScore{}, err
	}
	parsed.SurveyID = survey.ID
	parsed.Source = types.MatchScoreSourceAI
	return parsed, nil
}

func buildMatchingPrompt(profile *types.Profile, survey *types.Survey, stats *types.CompletionStats, hist HistoricalPerformance) string {
	var b strings.Builder
	b.WriteString("Analyze this user-survey match:\n\n")

	fmt.Fprintf(&b, "USER PROFILE:\n")
	fmt.Fprintf(&b, "- Age: %d\n", types.AgeBracketMidpoint(profile.Age))
	fmt.Fprintf(&b, "- Gender: %s\n", profile.Gender)
	fmt.Fprintf(&b, "- Country: %s\n", profile.Location)
	fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(profile.InterestList(), ", "))
	fmt.Fprintf(&b, "- Employment: %s\n", profile.Employment)
	fmt.Fprintf(&b, "- Income: %s\n", profile.Income)
	fmt.Fprintf(&b, "- Completion Rate: %.0f%%\n", stats.CompletionRate)
	fmt.Fprintf(&b, "- Avg Survey Time: %.1f min\n\n", stats.AvgSurveyTime)

	fmt.Fprintf(&b, "SURVEY DETAILS:\n")
	fmt.Fprintf(&b, "- Title: %s\n", survey.Title)
	fmt.Fprintf(&b, "- Provider: %s\n", survey.Provider)
	fmt.Fprintf(&b, "- Reward: $%.2f\n", survey.Reward)
	fmt.Fprintf(&b, "- Est. Time: %d min\n", survey.EstimatedTime)
	fmt.Fprintf(&b, "- Completion Rate: %.0f%%\n", survey.CompletionRate*100)
	fmt.Fprintf(&b, "- Target Age: %s - %s\n", orAny(survey.MinAge), orAny(survey.MaxAge))
	fmt.Fprintf(&b, "- Target Gender: %s\n\n", orAnyList(survey.GenderList()))

	fmt.Fprintf(&b, "HISTORICAL DATA:\n")
	fmt.Fprintf(&b, "- Provider attempts recorded: %d\n", hist.TotalAttempts)
	fmt.Fprintf(&b, "- Provider success rate for this user: %.0f%%\n", hist.ProviderSuccessRate)
	fmt.Fprintf(&b, "- Average reward on completion: $%.2f\n\n", hist.AvgReward)

	b.WriteString(`Return JSON with:
{
  "score": 0.85,
  "confidence": 0.92,
  "factors": {
    "demographic_match": 0.90,
    "interest_match": 0.75,
    "completion_history": 0.88,
    "provider_performance": 0.85
  },
  "reasoning": "why"
}`)
	return b.String()
}

func orAny(v *int) string {
	if v == nil {
		return "any"
	}
	return fmt.Sprintf("%d", *v)
}

func orAnyList(values []string) string {
	if len(values) == 0 {
		return "any"
	}
	return strings.Join(values, ", ")
}

type aiScorePayload struct {
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
	Factors    struct {
		DemographicMatch    *float64 `json:"demographic_match"`
		InterestMatch       *float64 `json:"interest_match"`
		CompletionHistory   *float64 `json:"completion_history"`
		ProviderPerformance *float64 `json:"provider_performance"`
	} `json:"factors"`
}

// parseAIScore extracts the first JSON object from the completion text.
// Model output is untrusted: missing fields default, every value is clamped.
func parseAIScore(content string) (types.MatchScore, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return types.MatchScore{}, fmt.Errorf("no JSON object in completion")
	}

	var payload aiScorePayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return types.MatchScore{}, fmt.Errorf("completion JSON decode: %w", err)
	}
	if payload.Score == nil {
		return types.MatchScore{}, fmt.Errorf("completion JSON has no score")
	}

	confidence := 0.5
	if payload.Confidence != nil && *payload.Confidence >= 0 && *payload.Confidence <= 1 {
		confidence = *payload.Confidence
	}

	return types.MatchScore{
		Score:      clamp01(*payload.Score),
		Confidence: confidence,
		Factors: types.MatchFactors{
			DemographicMatch:    clampOrDefault(payload.Factors.DemographicMatch),
			InterestMatch:       clampOrDefault(payload.Factors.InterestMatch),
			CompletionHistory:   clampOrDefault(payload.Factors.CompletionHistory),
			ProviderPerformance: clampOrDefault(payload.Factors.ProviderPerformance),
		},
	}, nil
}

// heuristicScore is the deterministic fallback: weighted sum of four factors,
// fixed 0.7 confidence.
func (s *matchScorer) heuristicScore(profile *types.Profile, survey *types.Survey, stats *types.CompletionStats) types.MatchScore {
	factors := types.MatchFactors{
		DemographicMatch:    demographicMatch(profile, survey),
		InterestMatch:       interestMatch(profile, survey),
		CompletionHistory:   clamp01(stats.CompletionRate / 100),
		ProviderPerformance: clamp01(survey.CompletionRate),
	}

	score := factors.DemographicMatch*0.30 +
		factors.InterestMatch*0.25 +
		factors.CompletionHistory*0.25 +
		factors.ProviderPerformance*0.20

	return types.MatchScore{
		SurveyID:   survey.ID,
		Score:      clamp01(score),
		Confidence: 0.7,
		Factors:    factors,
		Source:     types.MatchScoreSourceHeuristic,
	}
}

func demographicMatch(profile *types.Profile, survey *types.Survey) float64 {
	score := 1.0

	if survey.MinAge != nil || survey.MaxAge != nil {
		minAge, maxAge := 18, 65
		if survey.MinAge != nil {
			minAge = *survey.MinAge
		}
		if survey.MaxAge != nil {
			maxAge = *survey.MaxAge
		}
		targetAge := float64(minAge+maxAge) / 2
		ageDiff := float64(types.AgeBracketMidpoint(profile.Age)) - targetAge
		if ageDiff < 0 {
			ageDiff = -ageDiff
		}
		penalty := 1 - ageDiff/20
		if penalty < 0 {
			penalty = 0
		}
		score *= penalty
	}

	if genders := survey.GenderList(); len(genders) > 0 {
		if !containsFold(genders, profile.Gender) {
			score *= 0.3
		}
	}

	return score
}

// interestMatch is the fraction of survey tags that substring-match a user
// interest in either direction, case-insensitive. 0.7 is neutral when the
// survey declares no interests.
func interestMatch(profile *types.Profile, survey *types.Survey) float64 {
	surveyInterests := survey.InterestList()
	if len(surveyInterests) == 0 {
		return 0.7
	}

	userInterests := profile.InterestList()
	matched := 0
	for _, tag := range surveyInterests {
		tagLower := strings.ToLower(tag)
		for _, userInt := range userInterests {
			userLower := strings.ToLower(userInt)
			if strings.Contains(userLower, tagLower) || strings.Contains(tagLower, userLower) {
				matched++
				break
			}
		}
	}
	return clamp01(float64(matched) / float64(len(surveyInterests)))
}

// HistoricalPerformance aggregates the last 100 feedback rows for a provider.
// Empty history yields zero values; the scorer treats that as "unknown".
func (s *matchScorer) HistoricalPerformance(ctx context.Context, provider string) HistoricalPerformance {
	rows, err := s.feedback.ListByProvider(ctx, nil, provider, 100)
	if err != nil {
		s.log.Debug("Historical feedback lookup failed", "provider", provider, "error", err)
		return HistoricalPerformance{}
	}
	if len(rows) == 0 {
		return HistoricalPerformance{}
	}

	var completed int
	var rewardSum, timeSum float64
	for _, row := range rows {
		if row.Result == types.ResultCompleted {
			completed++
			rewardSum += row.RewardEarned
			timeSum += float64(row.TimeSpentSeconds)
		}
	}

	hist := HistoricalPerformance{
		TotalAttempts:       len(rows),
		CompletedAttempts:   completed,
		ProviderSuccessRate: float64(completed) / float64(len(rows)) * 100,
	}
	if completed > 0 {
		hist.AvgReward = rewardSum / float64(completed)
		hist.AvgTimeSeconds = timeSum / float64(completed)
	}
	return hist
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampOrDefault(v *float64) float64 {
	if v == nil {
		return 0.5
	}
	return clamp01(*v)
}
