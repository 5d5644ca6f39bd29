package login

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/internal/domain/authctx"
	"github.com/kidpech/authbridge/pkg/response"
)

// TriggerHeader lets a UI identify the login button instance that fired.
const TriggerHeader = "X-Login-Trigger"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// SessionReader resolves and drops sessions for the HTTP surface.
type SessionReader interface {
	Current(ctx context.Context, key string) (*authbridge.Session, error)
	Logout(ctx context.Context, key string) error
}

// Handler wires HTTP routes to the Service.
type Handler struct {
	service  *Service
	sessions SessionReader
	cookie   CookieConfig
}

// NewHandler returns a Handler.
func NewHandler(service *Service, sessions SessionReader, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "authbridge_session"
	}
	return &Handler{service: service, sessions: sessions, cookie: cookie}
}

// RegisterRoutes mounts login + session routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, sessionMW gin.HandlerFunc) {
	rg.POST("/:locale/auth/:provider/login", h.login)
	rg.POST("/logout", h.logout)

	me := rg.Group("", sessionMW)
	{
		me.GET("/session", h.session)
		me.GET("/attempts", h.attempts)
	}
}

type loginBody struct {
	AccessToken string `json:"access_token"`
}

func (h *Handler) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ValidationError(c, err)
		return
	}
	req := Request{
		TriggerID: triggerID(c),
		Provider:  c.Param("provider"),
		Locale:    c.Param("locale"),
	}
	ctx := c.Request.Context()
	res, err := h.service.Complete(ctx, req, authbridge.Credential{AccessToken: body.AccessToken})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, res.SessionKey, cookieMaxAge(h.cookie.MaxAge, res.ExpiresIn), "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{
		"attempt_id": res.Attempt.ID,
		"subject":    res.Session.Subject,
	})
}

func (h *Handler) session(c *gin.Context) {
	sess, ok := SessionFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": sess.Subject})
}

func (h *Handler) attempts(c *gin.Context) {
	sess, ok := SessionFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	limit := response.GetLimit(c, 20, 100)
	items, err := h.service.History(c.Request.Context(), sess.Subject.Username, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if items == nil {
		items = []Attempt{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) logout(c *gin.Context) {
	key, err := c.Cookie(h.cookie.Name)
	if err == nil && key != "" {
		if err := h.sessions.Logout(c.Request.Context(), key); err != nil {
			response.InternalServerError(c, err)
			return
		}
	}
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		response.ValidationError(c, err)
	case errors.Is(err, ErrAttemptInProgress):
		response.Conflict(c, "attempt_in_progress", "a login attempt is already running")
	case errors.Is(err, ErrAttemptAbandoned):
		response.Fail(c, http.StatusRequestTimeout, "abandoned", "login attempt abandoned")
	case errors.Is(err, authbridge.ErrProvider):
		response.Fail(c, http.StatusBadRequest, string(authbridge.KindProvider), messageOf(err))
	case errors.Is(err, authbridge.ErrBackendRejected):
		response.Fail(c, http.StatusUnauthorized, string(authbridge.KindBackendRejected), messageOf(err))
	case errors.Is(err, authbridge.ErrTransport):
		response.Fail(c, http.StatusBadGateway, string(authbridge.KindTransport), "backend unreachable")
	case errors.Is(err, authbridge.ErrMalformedResponse):
		response.Fail(c, http.StatusBadGateway, string(authbridge.KindMalformedResponse), "backend returned an invalid session")
	case errors.Is(err, authctx.ErrSessionExpired):
		response.Unauthorized(c, "session already expired")
	case errors.Is(err, authctx.ErrInvalidSession):
		response.Fail(c, http.StatusBadGateway, string(authbridge.KindMalformedResponse), "backend returned an invalid session")
	default:
		response.InternalServerError(c, err)
	}
}

// SessionFromContext returns the session attached by the session middleware.
func SessionFromContext(c *gin.Context) (*authbridge.Session, bool) {
	val, ok := c.Get(response.SessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := val.(*authbridge.Session)
	return sess, ok && sess != nil
}

func triggerID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(TriggerHeader)); id != "" {
		return id
	}
	return "ip:" + c.ClientIP()
}

func messageOf(err error) string {
	var authErr *authbridge.Error
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return err.Error()
}

// cookieMaxAge caps the configured lifetime at the session's own, rounding up to whole seconds.
func cookieMaxAge(configured, session time.Duration) int {
	d := configured
	if session > 0 && (d <= 0 || session < d) {
		d = session
	}
	return int((d + time.Second - 1) / time.Second)
}
