package api

import (
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/config"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Context keys handlers use to enrich the request log line.
const (
	ContextKeyRequestID     = "request_id"
	ContextKeyConfigVersion = "config_version"
	ContextKeyMatchType     = "match_type"
	ContextKeyCandidates    = "candidates"
)

// LoggingMiddleware logs HTTP requests with structured logging. Resolver
// handlers annotate the context with the configuration version that served
// the request and, for scoring routes, the tier or candidate count.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)

		event := logger.Info()
		if c.Writer.Status() >= 500 {
			event = logger.Error()
		} else if c.Writer.Status() >= 400 {
			event = logger.Warn()
		}

		event.
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if v := c.GetString(ContextKeyConfigVersion); v != "" {
			event.Str("config_version", v)
		}
		if v := c.GetString(ContextKeyMatchType); v != "" {
			event.Str("match_type", v)
		}
		if n, ok := c.Get(ContextKeyCandidates); ok {
			event.Interface("candidates", n)
		}
		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}

		event.Msg("http request")
	}
}

// requestID returns the id set by RequestIDMiddleware, or "unknown".
func requestID(c *gin.Context) string {
	if id := c.GetString(ContextKeyRequestID); id != "" {
		return id
	}
	return "unknown"
}

// CORSMiddleware adds CORS headers based on configuration
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "*"
		if !cfg.AllowAll {
			// Only the configured frontend may call with credentials
			origin = cfg.FrontendURL
		}

		c.Header("Access-Control-Allow-Origin", origin)
		// The resolver API only reads and scores; there are no PUT/PATCH/DELETE routes
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")

		if !cfg.AllowAll {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// ErrorHandlerMiddleware recovers from panics in handlers and answers with
// the standard error envelope instead of an empty 500.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error().
			Str("request_id", requestID(c)).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Msg("handler panicked")
		SendInternalError(c, "unexpected failure while handling the request")
		c.Abort()
	})
}
