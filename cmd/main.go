package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"points-ledger/internal/auth"
	"points-ledger/internal/clock"
	"points-ledger/internal/config"
	"points-ledger/internal/database"
	"points-ledger/internal/handlers"
	"points-ledger/internal/jobs"
	"points-ledger/internal/logging"
	"points-ledger/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.Init(cfg.App.Production); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		logging.L().Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		logging.L().Fatal("failed to run migrations", zap.Error(err))
	}

	db := database.GetDB()
	clk := clock.System()

	// Initialize services
	ledgerService := services.NewLedgerService(db, clk)
	eligibilityService := services.NewEligibilityService(db, ledgerService, clk, cfg)
	rewardService := services.NewRewardService(db, cfg, clk, ledgerService, eligibilityService)
	referralService := services.NewReferralService(db, cfg, ledgerService)
	accountService := services.NewAccountService(db, cfg, ledgerService, referralService)
	withdrawalService := services.NewWithdrawalService(db, cfg, clk, ledgerService)
	statsService := services.NewStatsService(db, clk, ledgerService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg.App.ServiceAPIKey)
	accountHandler := handlers.NewAccountHandler(accountService, ledgerService, statsService)
	rewardHandler := handlers.NewRewardHandler(rewardService)
	referralHandler := handlers.NewReferralHandler(referralService)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService)
	adminHandler := handlers.NewAdminHandler(accountService, rewardService, withdrawalService, statsService)
	statsHandler := handlers.NewStatsHandler(statsService)

	// Start background jobs
	sweeper := jobs.NewCounterSweeper(db, clk, 10*time.Minute)
	go sweeper.Start()
	defer sweeper.Stop()

	snapshotter := jobs.NewStatsSnapshotter(statsService, time.Hour)
	go snapshotter.Start()
	defer snapshotter.Stop()

	if cfg.App.BackupInterval > 0 {
		backup := jobs.NewBackupRunner(cfg, time.Duration(cfg.App.BackupInterval)*time.Hour)
		go backup.Start()
		defer backup.Stop()
	}

	// Set up router
	if cfg.App.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandler.Token)
		v1.POST("/accounts/register", accountHandler.Register)
		v1.GET("/leaderboard", statsHandler.Leaderboard)

		account := v1.Group("/account", auth.AuthMiddleware())
		{
			account.GET("/balance", accountHandler.GetBalance)
			account.GET("/history", accountHandler.GetHistory)
			account.GET("/summary", accountHandler.GetSummary)
			account.GET("/rewards/:category", rewardHandler.TryReward)
			account.POST("/rewards/:category", rewardHandler.Claim)
			account.POST("/charge", rewardHandler.Charge)
			account.POST("/refund", rewardHandler.Refund)
			account.GET("/referrals", referralHandler.ListReferrals)
			account.GET("/referrals/stats", referralHandler.GetStats)
			account.POST("/withdrawals", withdrawalHandler.Request)
			account.GET("/withdrawals", withdrawalHandler.List)
		}

		admin := v1.Group("/admin", auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			admin.POST("/adjust", adminHandler.Adjust)
			admin.POST("/ban", adminHandler.Ban)
			admin.POST("/unban", adminHandler.Unban)
			admin.GET("/withdrawals", adminHandler.PendingWithdrawals)
			admin.POST("/withdrawals/:reference/approve", adminHandler.ApproveWithdrawal)
			admin.POST("/withdrawals/:reference/reject", adminHandler.RejectWithdrawal)
			admin.POST("/stats/snapshot", adminHandler.Snapshot)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logging.L().Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.L().Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.L().Error("forced shutdown", zap.Error(err))
	}
}
