package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// RouterConfig holds what the router is built from
type RouterConfig struct {
	Handler  *Handler
	APIToken string // When set, /api requires "Authorization: Bearer <token>"
	Logger   *logger.Logger
}

// NewRouter builds the read-only HTTP API
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	// Public
	router.GET("/healthcheck", HealthCheck)

	// Protected
	api := router.Group("/api")
	if cfg.APIToken != "" {
		api.Use(requireToken(cfg.APIToken))
	}
	api.GET("/items", cfg.Handler.ListItems)
	api.GET("/items/:id", cfg.Handler.GetItem)
	api.GET("/bundles", cfg.Handler.ListBundles)
	api.GET("/bundles/:id", cfg.Handler.GetBundle)
	api.GET("/bundles/:id/buyers", cfg.Handler.GetBuyerInterests)
	api.GET("/summary", cfg.Handler.GetSummary)
	api.GET("/oracle", cfg.Handler.GetOracle)
	api.GET("/assets/:address", cfg.Handler.GetOwnedAssets)
	if cfg.Handler.Events != nil {
		api.GET("/events", cfg.Handler.ListEvents)
	}

	return router
}

var errInvalidToken = errors.New("missing or invalid token")

func requireToken(token string) gin.HandlerFunc {
	want := "Bearer " + token
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != want {
			RespondError(c, http.StatusUnauthorized, "unauthenticated", errInvalidToken)
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
