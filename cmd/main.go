package main

import (
	"fmt"
	"os"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/clients/justthetip"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/clients/openai"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/clients/redisdb"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/db"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/handlers"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/middleware"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/server"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/services"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	cpxAppID := utils.GetEnv("CPX_APP_ID", "", log)
	cpxSecureKey := utils.GetEnv("CPX_SECURE_HASH_KEY", "", log)
	if cpxSecureKey == "" {
		// Without the shared secret every postback would be rejected, and a
		// guessed default would let anyone forge completions.
		log.Fatal("CPX_SECURE_HASH_KEY is required")
	}
	scoreConcurrency := utils.GetEnvAsInt("MATCH_SCORE_CONCURRENCY", 5, log)
	listenAddr := utils.GetEnv("LISTEN_ADDR", ":8080", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	redisService, err := redisdb.NewService(log)
	if err != nil {
		log.Warn("Redis init failed, postback dedup falls back to the database", "error", err)
		redisService = nil
	}

	// Repos
	log.Info("Setting up Repos from main...")
	profileRepo := repos.NewProfileRepo(thePG, log)
	surveyRepo := repos.NewSurveyRepo(thePG, log)
	surveyClickRepo := repos.NewSurveyClickRepo(thePG, log)
	feedbackRepo := repos.NewCompletionFeedbackRepo(thePG, log)
	statsRepo := repos.NewCompletionStatsRepo(thePG, log)
	pendingRepo := repos.NewPendingEarningRepo(thePG, log)
	earningsRepo := repos.NewUserEarningsRepo(thePG, log)
	txnRepo := repos.NewPayoutTransactionRepo(thePG, log)
	microtaskRepo := repos.NewMicrotaskRepo(thePG, log)
	completionRepo := repos.NewMicrotaskCompletionRepo(thePG, log)
	referralRepo := repos.NewReferralRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Warn("OpenAI client unavailable, scoring runs heuristic only", "error", err)
		openaiClient = nil
	}
	tipClient, err := justthetip.NewClient(log)
	if err != nil {
		log.Error("Could not init JustTheTip client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	wallService := services.NewWallService(log, cpxAppID, cpxSecureKey)
	scorer := services.NewMatchScorer(log, openaiClient, feedbackRepo)
	matcher := services.NewSurveyMatcher(log, profileRepo, surveyRepo, statsRepo, scorer, scoreConcurrency)
	clickService := services.NewClickService(log, profileRepo, surveyRepo, surveyClickRepo)
	payoutService := services.NewPayoutService(log, thePG, tipClient, profileRepo, pendingRepo, earningsRepo, txnRepo)
	referralService := services.NewReferralService(log, profileRepo, referralRepo, payoutService)
	microtaskService := services.NewMicrotaskService(log, profileRepo, microtaskRepo, completionRepo, payoutService)
	webhookService := services.NewWebhookService(
		log,
		thePG,
		redisService,
		wallService,
		profileRepo,
		surveyRepo,
		surveyClickRepo,
		feedbackRepo,
		statsRepo,
		payoutService,
		referralService,
	)

	// Handlers
	log.Info("Setting up Handlers from main...")
	webhookHandler := handlers.NewWebhookHandler(log, webhookService)
	matchHandler := handlers.NewMatchHandler(log, matcher, clickService)
	payoutHandler := handlers.NewPayoutHandler(log, payoutService)
	wallHandler := handlers.NewWallHandler(log, wallService, profileRepo)
	microtaskHandler := handlers.NewMicrotaskHandler(log, microtaskService)
	referralHandler := handlers.NewReferralHandler(log, referralService)

	// Server
	srv := server.NewServer(server.RouterConfig{
		Log:              log,
		UserMiddleware:   middleware.NewUserMiddleware(log),
		WebhookHandler:   webhookHandler,
		MatchHandler:     matchHandler,
		PayoutHandler:    payoutHandler,
		WallHandler:      wallHandler,
		MicrotaskHandler: microtaskHandler,
		ReferralHandler:  referralHandler,
	})

	log.Info("Starting server", "addr", listenAddr)
	if err := srv.Run(listenAddr); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
