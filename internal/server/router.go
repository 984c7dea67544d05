package server

import (
	"github.com/gin-gonic/gin"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/handlers"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/middleware"
)

type RouterConfig struct {
	Log            *logger.Logger
	UserMiddleware *middleware.UserMiddleware

	WebhookHandler   *handlers.WebhookHandler
	MatchHandler     *handlers.MatchHandler
	PayoutHandler    *handlers.PayoutHandler
	WallHandler      *handlers.WallHandler
	MicrotaskHandler *handlers.MicrotaskHandler
	ReferralHandler  *handlers.ReferralHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(cfg.Log))

	// Health
	r.GET("/healthcheck", handlers.HealthCheck)

	api := r.Group("/api")
	{
		// Provider postbacks are signed, not session-authenticated.
		if cfg.WebhookHandler != nil {
			api.GET("/webhooks/cpx", cfg.WebhookHandler.HandleCPXPostback)
			api.POST("/webhooks/cpx", cfg.WebhookHandler.HandleCPXPostback)
		}
	}

	protected := api.Group("/")
	{
		if cfg.UserMiddleware != nil {
			protected.Use(cfg.UserMiddleware.RequireUser())
		}

		// Matching
		if cfg.MatchHandler != nil {
			protected.GET("/matches", cfg.MatchHandler.GetMatches)
			protected.POST("/surveys/:id/click", cfg.MatchHandler.TrackClick)
		}

		// Offer wall
		if cfg.WallHandler != nil {
			protected.GET("/cpx/wall-url", cfg.WallHandler.GetWallURL)
		}

		// Payouts
		if cfg.PayoutHandler != nil {
			protected.GET("/payouts/summary", cfg.PayoutHandler.GetSummary)
			protected.POST("/payouts/manual", cfg.PayoutHandler.RequestManualPayout)
		}

		// Microtasks
		if cfg.MicrotaskHandler != nil {
			protected.GET("/microtasks", cfg.MicrotaskHandler.ListAvailable)
			protected.GET("/microtasks/completions", cfg.MicrotaskHandler.ListCompletions)
			protected.GET("/microtasks/:id", cfg.MicrotaskHandler.GetTask)
			protected.POST("/microtasks/:id/submit", cfg.MicrotaskHandler.Submit)
		}

		// Referrals
		if cfg.ReferralHandler != nil {
			protected.POST("/referrals/track", cfg.ReferralHandler.TrackSignup)
			protected.GET("/referrals/stats", cfg.ReferralHandler.GetStats)
		}
	}

	return r
}
