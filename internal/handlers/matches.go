package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/middleware"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/services"
)

type MatchHandler struct {
	log      *logger.Logger
	matcher  services.SurveyMatcher
	clickSvc services.ClickService
}

func NewMatchHandler(log *logger.Logger, matcher services.SurveyMatcher, clickSvc services.ClickService) *MatchHandler {
	return &MatchHandler{
		log:      log.With("handler", "MatchHandler"),
		matcher:  matcher,
		clickSvc: clickSvc,
	}
}

// GET /api/matches?limit=10
func (h *MatchHandler) GetMatches(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	result, err := h.matcher.TopMatches(c.Request.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, repos.ErrProfileNotFound) {
			RespondError(c, http.StatusNotFound, "profile_not_found", err)
			return
		}
		h.log.Error("Match ranking failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "match_failed", err)
		return
	}
	RespondOK(c, result)
}

type clickRequest struct {
	MatchScore float64 `json:"match_score"`
}

// POST /api/surveys/:id/click
func (h *MatchHandler) TrackClick(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}
	surveyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_survey_id", err)
		return
	}

	var req clickRequest
	_ = c.ShouldBindJSON(&req)

	outcome, err := h.clickSvc.TrackClick(c.Request.Context(), userID, surveyID, req.MatchScore)
	if err != nil {
		if errors.Is(err, repos.ErrSurveyNotFound) {
			RespondError(c, http.StatusNotFound, "survey_not_found", err)
			return
		}
		if errors.Is(err, repos.ErrProfileNotFound) {
			RespondError(c, http.StatusNotFound, "profile_not_found", err)
			return
		}
		h.log.Error("Click tracking failed", "survey_id", surveyID, "error", err)
		RespondError(c, http.StatusInternalServerError, "click_failed", err)
		return
	}
	RespondOK(c, outcome)
}
