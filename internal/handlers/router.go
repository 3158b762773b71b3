package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Brownie44l1/acne-api/internal/logger"
	"github.com/Brownie44l1/acne-api/internal/predict"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// NewRouter wires the API routes and middleware. mode is a gin mode.
func NewRouter(h *Handler, log *logger.Logger, mode string) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(requestID())
	r.Use(accessLog(log))
	r.Use(gin.CustomRecovery(recoverJSON(log)))
	r.Use(cors())

	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, predict.ErrorResponse{Status: "error", Error: "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, predict.ErrorResponse{Status: "error", Error: "method not allowed"})
	})
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func accessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("HTTP request",
			"request_id", requestIDFrom(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// recoverJSON turns a panic during processing into a 500 error payload.
func recoverJSON(log *logger.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		err := fmt.Errorf("%v", recovered)
		log.Error("Panic while handling request", "request_id", requestIDFrom(c), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, predict.NewErrorResponse(err))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
