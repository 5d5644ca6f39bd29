package response

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Gin context keys shared by middleware and handlers.
const (
	SessionContextKey    = "session"
	SessionKeyContextKey = "session_key"
	RequestIDContextKey  = "request_id"
)

// ErrorResponse standardizes API errors.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ValidationError writes 400 payloads.
func ValidationError(c *gin.Context, err error) {
	resp := ErrorResponse{Error: "validation_error", Message: "invalid request"}
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		detail := make(map[string]string)
		for _, field := range verr {
			detail[strings.ToLower(field.Field())] = field.Tag()
		}
		resp.Details = detail
	}
	c.JSON(http.StatusBadRequest, resp)
}

// Fail writes an arbitrary status with a machine-readable code.
func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: code, Message: message})
}

// Unauthorized helper.
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: message})
}

// Conflict helper.
func Conflict(c *gin.Context, code, message string) {
	c.JSON(http.StatusConflict, ErrorResponse{Error: code, Message: message})
}

// TooManyRequests helper.
func TooManyRequests(c *gin.Context, reset time.Time) {
	resetSeconds := strconv.FormatInt(reset.Unix(), 10)
	retryAfter := int(time.Until(reset).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	c.Writer.Header().Set("X-RateLimit-Reset", resetSeconds)
	c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate_limited", Message: "slow down"})
}

// InternalServerError helper.
func InternalServerError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "unexpected error"})
	if gin.IsDebugging() {
		_ = c.Error(err) // surface for logs
	}
}

// GetLimit parses query limit.
func GetLimit(c *gin.Context, fallback, max int) int {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return fallback
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return fallback
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// GetInt parses an integer query parameter.
func GetInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// SessionKeyFromContext extracts the session key for rate limiting.
func SessionKeyFromContext(c *gin.Context) string {
	val, exists := c.Get(SessionKeyContextKey)
	if !exists {
		return ""
	}
	if key, ok := val.(string); ok {
		return key
	}
	return ""
}
