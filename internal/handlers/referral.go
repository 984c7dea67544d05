package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/middleware"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/services"
)

type ReferralHandler struct {
	log         *logger.Logger
	referralSvc services.ReferralService
}

func NewReferralHandler(log *logger.Logger, referralSvc services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		log:         log.With("handler", "ReferralHandler"),
		referralSvc: referralSvc,
	}
}

type signupRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

// POST /api/referrals/track
func (h *ReferralHandler) TrackSignup(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	referral, err := h.referralSvc.TrackSignup(c.Request.Context(), req.ReferralCode, userID)
	if err != nil {
		switch {
		case errors.Is(err, repos.ErrProfileNotFound):
			RespondError(c, http.StatusNotFound, "code_not_found", err)
		case errors.Is(err, services.ErrSelfReferral):
			RespondError(c, http.StatusBadRequest, "self_referral", err)
		default:
			h.log.Error("Referral signup failed", "user_id", userID.String(), "error", err)
			RespondError(c, http.StatusInternalServerError, "signup_failed", err)
		}
		return
	}
	RespondOK(c, referral)
}

// GET /api/referrals/stats
func (h *ReferralHandler) GetStats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	stats, err := h.referralSvc.Stats(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repos.ErrProfileNotFound) {
			RespondError(c, http.StatusNotFound, "profile_not_found", err)
			return
		}
		h.log.Error("Referral stats failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "stats_failed", err)
		return
	}
	RespondOK(c, stats)
}
