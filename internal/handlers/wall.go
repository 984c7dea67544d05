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

type WallHandler struct {
	log      *logger.Logger
	wallSvc  services.WallService
	profiles repos.ProfileRepo
}

func NewWallHandler(log *logger.Logger, wallSvc services.WallService, profiles repos.ProfileRepo) *WallHandler {
	return &WallHandler{
		log:      log.With("handler", "WallHandler"),
		wallSvc:  wallSvc,
		profiles: profiles,
	}
}

// GET /api/cpx/wall-url
func (h *WallHandler) GetWallURL(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	profile, err := h.profiles.GetByUserID(c.Request.Context(), nil, userID)
	if err != nil {
		if errors.Is(err, repos.ErrProfileNotFound) {
			RespondError(c, http.StatusNotFound, "profile_not_found", err)
			return
		}
		h.log.Error("Profile lookup failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "wall_url_failed", err)
		return
	}

	url := h.wallSvc.GenerateWallURL(services.WallParams{
		UserID:    userID.String(),
		Email:     profile.Email,
		SubID1:    profile.SubID1,
		SubID2:    profile.SubID2,
		MessageID: c.Query("message_id"),
	})
	RespondOK(c, gin.H{"wall_url": url})
}
