package authctx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
)

// Sentinel errors for deterministic HTTP mapping.
var (
	ErrNoSession      = errors.New("no active session")
	ErrInvalidSession = errors.New("session is missing credentials")
	ErrSessionExpired = errors.New("session credential already expired")
)

// Context is the application-wide owner of published sessions.
type Context struct {
	store      Store
	defaultTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// New wires a Context over store.
func New(store Store, defaultTTL time.Duration, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Context{store: store, defaultTTL: defaultTTL, now: time.Now, logger: logger}
}

// NewKey returns a fresh opaque session key.
func NewKey() string {
	return uuid.NewString()
}

// Publish hands sess to the context under key.
func (c *Context) Publish(ctx context.Context, key string, sess *authbridge.Session) error {
	if strings.TrimSpace(key) == "" || sess == nil {
		return ErrInvalidSession
	}
	if sess.AccessCredential == "" || sess.RefreshCredential == "" || sess.Subject.Username == "" {
		return ErrInvalidSession
	}
	ttl := c.ttlFor(sess.AccessCredential)
	if ttl <= 0 {
		return ErrSessionExpired
	}
	if err := c.store.Put(ctx, key, sess, ttl); err != nil {
		return err
	}
	c.logger.Info("session published", zap.String("username", sess.Subject.Username), zap.Duration("ttl", ttl))
	return nil
}

// Current returns the session stored under key.
func (c *Context) Current(ctx context.Context, key string) (*authbridge.Session, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNoSession
	}
	return c.store.Get(ctx, key)
}

// Logout forgets the session stored under key.
func (c *Context) Logout(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return c.store.Delete(ctx, key)
}

// Ping reports whether the backing store is reachable.
func (c *Context) Ping(ctx context.Context) error {
	if p, ok := c.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// SessionTTL reports how long sess stays published from now.
func (c *Context) SessionTTL(sess *authbridge.Session) time.Duration {
	if sess == nil {
		return 0
	}
	return c.ttlFor(sess.AccessCredential)
}

// ttlFor uses the exp claim when the access credential is a JWT.
// The signature is not checked: the backend owns token validation.
func (c *Context) ttlFor(access string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return c.defaultTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return c.defaultTTL
	}
	return exp.Sub(c.now())
}
