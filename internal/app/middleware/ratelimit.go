package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidpech/authbridge/internal/infrastructure/ratelimit"
	"github.com/kidpech/authbridge/pkg/response"
)

// RateLimit enforces per-IP and per-session throttles.
func RateLimit(ipLimiter, sessionLimiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()
		if ipLimiter != nil {
			info, err := ipLimiter.Allow(ctx, "ip:"+clientIP)
			if err == nil {
				setHeaders(c, info)
				if !info.Allowed {
					response.TooManyRequests(c, info.Reset)
					c.Abort()
					return
				}
			}
		}
		sessionKey := response.SessionKeyFromContext(c)
		if sessionLimiter != nil && sessionKey != "" {
			info, err := sessionLimiter.Allow(ctx, "session:"+sessionKey)
			if err == nil {
				setHeaders(c, info)
				if !info.Allowed {
					response.TooManyRequests(c, info.Reset)
					c.Abort()
					return
				}
			}
		}
		c.Next()
	}
}

func setHeaders(c *gin.Context, info ratelimit.RateLimitInfo) {
	c.Writer.Header().Set("X-RateLimit-Limit", intToString(info.Limit))
	c.Writer.Header().Set("X-RateLimit-Remaining", intToString(info.Remaining))
	c.Writer.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.Reset.Unix(), 10))
	if !info.Allowed {
		reset := time.Until(info.Reset)
		if reset < 0 {
			reset = 0
		}
		c.Writer.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())))
	}
}

func intToString(val int) string {
	return strconv.Itoa(val)
}
