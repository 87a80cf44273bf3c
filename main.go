package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pulsetrack/api/config"
	"pulsetrack/api/database"
	"pulsetrack/api/handlers"
	"pulsetrack/api/logger"
	"pulsetrack/api/metrics"
	"pulsetrack/api/middleware"
	"pulsetrack/api/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// PostgreSQL holds users and write keys.
	dbClient, err := database.NewPostgresDB(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize PostgreSQL database", zap.Error(err))
	}
	defer dbClient.Close()

	// ClickHouse holds the append-only event stream.
	chClient, err := database.NewClickHouseDB(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize ClickHouse database", zap.Error(err))
	}
	defer chClient.Close()

	collectMetrics := metrics.NewCollectMetrics(prometheus.DefaultRegisterer)

	userStore := store.NewUserStore(dbClient.DB, zlog)
	analyticsStore := store.NewAnalyticsStore(chClient, zlog)
	writeKeyStore := store.NewWriteKeyStore(dbClient.DB, zlog, cfg.WriteKeyCacheTTL, collectMetrics)

	jwtSecret := []byte(cfg.JWTSecret)
	authHandlers := handlers.NewAuthHandlers(userStore, zlog, jwtSecret)
	analyticsHandlers := handlers.NewAnalyticsHandlers(analyticsStore, zlog, collectMetrics, jwtSecret)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zlog))
	r.Use(middleware.CORSMiddleware(cfg.FEOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// The collection endpoint stays open to tracked sites; the write key
		// gate is a no-op unless enforcement is configured.
		api.POST("/analytics/collect",
			middleware.WriteKeyRequired(writeKeyStore, zlog, cfg.CollectRequireWriteKey),
			analyticsHandlers.Collect)

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired(jwtSecret, zlog))
		{
			protected.GET("/profile", authHandlers.Profile)

			analyticsGroup := protected.Group("/analytics")
			{
				analyticsGroup.GET("/events", analyticsHandlers.ListEvents(false))
				analyticsGroup.GET("/events/filter", analyticsHandlers.ListEvents(true))

				summary := analyticsGroup.Group("/summary")
				{
					summary.GET("/popular-pages", analyticsHandlers.PopularPages)
					summary.GET("/events-by-date", analyticsHandlers.EventsByDate)
					summary.GET("/event-types-breakdown", analyticsHandlers.EventTypeBreakdown)
					summary.GET("/page-views", analyticsHandlers.TotalPageViews)
					summary.GET("/unique-visitors", analyticsHandlers.UniqueVisitors)
					summary.GET("/conversion-funnel", analyticsHandlers.ConversionFunnel)
				}
			}
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		zlog.Info("API server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("API server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exiting.")
}
