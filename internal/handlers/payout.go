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

type PayoutHandler struct {
	log       *logger.Logger
	payoutSvc services.PayoutService
}

func NewPayoutHandler(log *logger.Logger, payoutSvc services.PayoutService) *PayoutHandler {
	return &PayoutHandler{
		log:       log.With("handler", "PayoutHandler"),
		payoutSvc: payoutSvc,
	}
}

// GET /api/payouts/summary
func (h *PayoutHandler) GetSummary(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	summary, err := h.payoutSvc.Summary(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repos.ErrProfileNotFound) {
			RespondError(c, http.StatusNotFound, "profile_not_found", err)
			return
		}
		h.log.Error("Payout summary failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "summary_failed", err)
		return
	}
	RespondOK(c, summary)
}

// POST /api/payouts/manual
func (h *PayoutHandler) RequestManualPayout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	result, err := h.payoutSvc.ManualPayout(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNothingPending):
			RespondError(c, http.StatusBadRequest, "nothing_pending", err)
		case errors.Is(err, services.ErrWalletPayoutUnsupported):
			RespondError(c, http.StatusUnprocessableEntity, "wallet_unsupported", err)
		case errors.Is(err, services.ErrDiscordNotLinked):
			RespondError(c, http.StatusUnprocessableEntity, "discord_not_linked", err)
		case errors.Is(err, services.ErrCreditFailed):
			RespondError(c, http.StatusBadGateway, "credit_failed", err)
		case errors.Is(err, repos.ErrProfileNotFound):
			RespondError(c, http.StatusNotFound, "profile_not_found", err)
		default:
			h.log.Error("Manual payout failed", "user_id", userID.String(), "error", err)
			RespondError(c, http.StatusInternalServerError, "payout_failed", err)
		}
		return
	}
	RespondOK(c, result)
}
