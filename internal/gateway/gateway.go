package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/broker"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/config"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/service"
)

// Store is everything the gateway needs from the canonical store:
// session mutations go through the SessionManager, view and stats reads
// feed each dashboard synchronizer.
type Store interface {
	service.ViewStore
	service.StatsStore
}

// Gateway exposes the session API and the dashboard websocket.
type Gateway struct {
	sessions *service.SessionManager
	store    Store
	client   *broker.Client
	cfg      *config.Config
	logger   *slog.Logger
}

func New(sessions *service.SessionManager, store Store, client *broker.Client, cfg *config.Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		sessions: sessions,
		store:    store,
		client:   client,
		cfg:      cfg,
		logger:   logger,
	}
}

// Router wires the HTTP surface.
func (g *Gateway) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     g.cfg.AllowedOrigins,
		AllowMethods:     []string{"POST", "GET", "PATCH", "DELETE", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Restaurant-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", g.health)
	router.GET("/ws/dashboard", g.dashboard)

	api := router.Group("/api/v1", requireRestaurant)
	{
		api.POST("/tables/:table_id/session", g.claimSession)
		api.POST("/tables/:table_id/release", g.releaseTable)
		api.POST("/sessions/:session_id/end", g.endSession)
		api.POST("/sessions/:session_id/release", g.releaseSession)
		api.POST("/sessions/:session_id/activity", g.recordActivity)
	}

	return router
}

const restaurantKey = "restaurant_id"

// requireRestaurant extracts the tenant key. Authentication happens
// upstream; here the id is an opaque partition key.
func requireRestaurant(c *gin.Context) {
	rid := c.GetHeader("X-Restaurant-ID")
	if rid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Restaurant-ID header is required"})
		return
	}
	c.Set(restaurantKey, rid)
	c.Next()
}

func restaurantID(c *gin.Context) string {
	return c.GetString(restaurantKey)
}

func (g *Gateway) health(c *gin.Context) {
	status := http.StatusOK
	if !g.client.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"broker_healthy": g.client.IsHealthy()})
}

func (g *Gateway) claimSession(c *gin.Context) {
	sess, err := g.sessions.GetOrCreateActiveSession(c.Request.Context(), restaurantID(c), c.Param("table_id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (g *Gateway) endSession(c *gin.Context) {
	if err := g.sessions.EndSession(c.Request.Context(), restaurantID(c), c.Param("session_id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (g *Gateway) releaseSession(c *gin.Context) {
	if err := g.sessions.ForceReleaseSession(c.Request.Context(), restaurantID(c), c.Param("session_id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

func (g *Gateway) releaseTable(c *gin.Context) {
	if err := g.sessions.ForceReleaseTable(c.Request.Context(), restaurantID(c), c.Param("table_id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

func (g *Gateway) recordActivity(c *gin.Context) {
	if err := g.sessions.RecordActivity(c.Request.Context(), restaurantID(c), c.Param("session_id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// writeError maps domain errors onto the HTTP surface. Conflicts and
// blocked releases are actionable and explicit; timeouts tell the
// caller to retry with backoff.
func (g *Gateway) writeError(c *gin.Context, err error) {
	var (
		conflict *models.SessionConflictError
		unpaid   *models.UnpaidOrdersError
		timeout  *models.StorageTimeoutError
	)
	switch {
	case errors.As(err, &unpaid):
		c.JSON(http.StatusConflict, gin.H{
			"error":         unpaid.Error(),
			"order_numbers": unpaid.OrderNumbers,
			"total_due":     unpaid.TotalDue,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "retryable": true})
	case errors.As(err, &timeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": timeout.Error(), "retryable": true})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		g.logger.Error("Unhandled session operation error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
