package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cleangreen-connect/ecosnap-api/internal/config"
	apperrors "github.com/cleangreen-connect/ecosnap-api/internal/errors"
	"github.com/cleangreen-connect/ecosnap-api/internal/logger"
	"github.com/cleangreen-connect/ecosnap-api/internal/service"
	"github.com/cleangreen-connect/ecosnap-api/pkg/models"
)

const (
	version         = "1.0.0"
	requestIDHeader = "X-Request-ID"
)

func NewHandler(svc service.WasteAnalysisService, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		corsPolicy(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		requestTimeout(cfg.RequestTimeout),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/waste-management", wasteManagement(svc, cfg))

	return r
}

// wasteManagement records failures with c.Error; errorHandler renders them.
func wasteManagement(svc service.WasteAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				_ = c.Error(apperrors.NewRequestTooLargeError("Request body too large", err))
				return
			}
			_ = c.Error(apperrors.NewValidationError("Invalid request body", err))
			return
		}
		if req.Image == nil || strings.TrimSpace(*req.Image) == "" {
			_ = c.Error(apperrors.NewValidationError("Image is required", nil))
			return
		}

		outcome, err := svc.AnalyzeWaste(c.Request.Context(), *req.Image)
		if err != nil {
			_ = c.Error(err)
			return
		}

		if outcome.Failure != nil {
			if cfg.StrictParse {
				_ = c.Error(apperrors.NewResponseParseError("Model response could not be interpreted", outcome.Failure.Details))
				return
			}
			c.JSON(http.StatusOK, outcome.Failure)
			return
		}

		c.JSON(http.StatusOK, outcome.Report)
	}
}

// clientMessage keeps internal details out of 5xx responses.
func clientMessage(appErr *apperrors.AppError) string {
	switch {
	case appErr.StatusCode < http.StatusInternalServerError,
		appErr.Type == apperrors.ErrorTypeResponseParse:
		return appErr.Message
	case appErr.StatusCode == http.StatusGatewayTimeout:
		return "Analysis timed out"
	default:
		return "Internal Server Error"
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Version: version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

// corsPolicy mirrors the public API's allow-all policy. Origins are echoed so
// credentialed requests keep working.
func corsPolicy() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.NewInternalError("Unexpected failure", err)
		}
		respondError(c, appErr.StatusCode, clientMessage(appErr), err)
	}
}

// requestTimeout bounds the whole request; the model timeout applies inside it.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
