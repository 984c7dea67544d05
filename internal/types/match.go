package types

// MatchScoreSource records which path produced a score. The AI call can fail
// for one offer and succeed for the next, so the source travels with the
// score instead of living in a log line nobody correlates.
type MatchScoreSource string

const (
	MatchScoreSourceAI        MatchScoreSource = "ai"
	MatchScoreSourceHeuristic MatchScoreSource = "heuristic"
)

type MatchFactors struct {
	DemographicMatch    float64 `json:"demographic_match"`
	InterestMatch       float64 `json:"interest_match"`
	CompletionHistory   float64 `json:"completion_history"`
	ProviderPerformance float64 `json:"provider_performance"`
}

// MatchScore is ephemeral: it is returned to the caller and snapshotted into
// survey_clicks, never stored as its own row.
type MatchScore struct {
	SurveyID   int64            `json:"survey_id"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
	Factors    MatchFactors     `json:"factors"`
	Source     MatchScoreSource `json:"source"`
}
