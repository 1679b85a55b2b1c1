package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/jobs"
	"github.com/symphonia/tms_backend/middlewares"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/tmssync"
	"github.com/symphonia/tms_backend/utils"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("TMS_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	cacheService := cache.NewService(logger)
	orchestrator := tmssync.NewOrchestrator(cacheService, logger)
	runner := jobs.NewRunner(orchestrator, cacheService, jobs.NewNotifier(logger), logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	// Readiness gates on the database only: redis is optional, the cache
	// degrades to its in-process fallback without it.
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	// Service tokens arrive as a bearer JWT, browser sessions as a redis-backed
	// token header; either one may authenticate a request.
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.SessionMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// API endpoints (TMS sync)
	r.GET("/api/tms/connections", tmssync.ListConnectionsHandler(orchestrator))
	r.POST("/api/tms/connections", tmssync.CreateConnectionHandler(orchestrator))
	r.POST("/api/tms/connections/:id/test", tmssync.TestConnectionHandler(orchestrator))
	r.POST("/api/tms/connections/:id/sync", tmssync.TriggerSyncHandler(orchestrator))
	r.GET("/api/tms/sync-runs", tmssync.SyncRunsHandler(orchestrator))
	r.GET("/api/tms/sync-runs/:id", tmssync.SyncRunDetailHandler(orchestrator))
	r.GET("/api/tms/counters", tmssync.CountersHandler(orchestrator))
	r.GET("/api/tms/orders", tmssync.OrdersHandler(orchestrator))
	r.GET("/api/tms/carriers", tmssync.CarriersHandler(orchestrator))
	r.GET("/api/tms/cache/stats", tmssync.CacheStatsHandler(orchestrator))
	r.GET("/api/tms/jobs/status", jobs.StatusHandler(runner))
	r.POST("/api/tms/jobs/:name/run", jobs.RunJobHandler(runner))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	defer config.DisconnectRedis()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_BACKGROUND_JOBS")), "true") {
		runner.Start(sigCtx)
	} else {
		logger.WithFields(logrus.Fields{"field": "jobs"}).Warn("DISABLE_BACKGROUND_JOBS=true; background jobs off")
	}

	select {
	case <-sigCtx.Done():
		runner.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
		runner.Stop()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
