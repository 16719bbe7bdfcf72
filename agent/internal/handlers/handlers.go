package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"mint-radar/agent/internal/metrics"
	"mint-radar/agent/internal/social"
	"mint-radar/agent/internal/store"
	"mint-radar/shared/logger"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TaskRunner triggers engine tasks on demand.
type TaskRunner interface {
	RunTask(ctx context.Context, name string) error
	Tasks() []string
}

// Scraper resolves a social reference into handles.
type Scraper interface {
	Resolve(ctx context.Context, ref string) ([]string, error)
}

type APIDeps struct {
	Mirror      *store.Mirror
	Tracking    *store.TrackingSet
	Subscribers *store.Subscribers
	Baselines   *store.Baselines
	Following   *store.Following
	// Scraper is nil when the social scraper is disabled.
	Scraper Scraper
	Tasks   TaskRunner
	// AdminToken guards the task trigger. Empty disables it.
	AdminToken string
}

func RegisterRoutes(router *gin.Engine, appLogger *logger.Logger) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is running. Radar active!"})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	appLogger.Debug("Base routes registered")
}

func RegisterAPIRoutes(router *gin.Engine, deps APIDeps, appLogger *logger.Logger) {
	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/status", func(c *gin.Context) {
			stats := deps.Mirror.Stats()
			c.JSON(http.StatusOK, gin.H{
				"subscribers": deps.Subscribers.Len(),
				"tracked":     deps.Tracking.Len(),
				"baselines":   deps.Baselines.Len(),
				"mirror":      stats,
				"following":   deps.Following.Len(),
				"tasks":       deps.Tasks.Tasks(),
			})
		})

		apiGroup.GET("/mirror", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Mirror.Stats())
		})

		apiGroup.GET("/mirror/:token", func(c *gin.Context) {
			token := c.Param("token")
			entry, err := deps.Mirror.Get(token)
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "token not in mirror"})
				return
			}
			resp := gin.H{"entry": entry}
			if b, err := deps.Baselines.Get(token); err == nil {
				resp["baseline"] = b
			}
			c.JSON(http.StatusOK, resp)
		})

		apiGroup.GET("/tracked", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"tracked": deps.Tracking.Snapshot()})
		})

		apiGroup.GET("/scrape", func(c *gin.Context) {
			ref := strings.TrimSpace(c.Query("url"))
			if ref == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
				return
			}
			if deps.Scraper == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "social scraper is disabled"})
				return
			}
			handles, err := deps.Scraper.Resolve(c.Request.Context(), ref)
			if err != nil {
				appLogger.Warn("Scrape request failed", zap.String("ref", ref), zap.Error(err), requestIDField(c))
				c.JSON(http.StatusGatewayTimeout, gin.H{"error": "scrape interrupted"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"ref":     ref,
				"kind":    social.Classify(ref).String(),
				"handles": len(handles),
				"result":  social.Split(handles, deps.Following),
			})
		})

		apiGroup.POST("/tasks/:name", RequireToken(deps.AdminToken, appLogger), func(c *gin.Context) {
			name := c.Param("name")
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
			defer cancel()
			if err := deps.Tasks.RunTask(ctx, name); err != nil {
				appLogger.Warn("Manual task run rejected", zap.String("task", name), zap.Error(err), requestIDField(c))
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "task completed", "task": name})
		})
	}
	appLogger.Info("API routes registered under /api/v1")
}

// RegisterWebhook accepts Bot API updates at /webhook/:token. Updates are handed to
// handle on appCtx so processing outlives the request.
func RegisterWebhook(router *gin.Engine, appCtx context.Context, botToken string, handle func(context.Context, tgbotapi.Update), appLogger *logger.Logger) {
	router.POST("/webhook/:token", func(c *gin.Context) {
		if !tokenMatches(c.Param("token"), botToken) {
			appLogger.Warn("Webhook token mismatch", requestIDField(c), zap.String("remoteAddr", c.RemoteIP()))
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			appLogger.Warn("Invalid webhook payload", zap.Error(err), requestIDField(c))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		go handle(appCtx, update)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
}
