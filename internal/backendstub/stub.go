package backendstub

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// User is what the stub returns for an accepted provider token.
type User struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	ProfilePicture string `json:"profile_picture"`
}

// Options configure the stub backend.
type Options struct {
	// Users maps provider tokens to accounts. When empty every non-empty token is accepted.
	Users     map[string]User
	Secret    string
	AccessTTL time.Duration
	Logger    *zap.Logger
}

// Stub emulates the backend side of the social login exchange.
type Stub struct {
	opts     Options
	mu       sync.RWMutex
	requests int64
	nextID   int64
}

// New returns a Stub.
func New(opts Options) *Stub {
	if opts.Secret == "" {
		opts.Secret = "stub-secret"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Stub{opts: opts}
}

// Requests reports how many exchange calls were received.
func (s *Stub) Requests() int {
	return int(atomic.LoadInt64(&s.requests))
}

// AddUser registers a token.
func (s *Stub) AddUser(token string, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.Users == nil {
		s.opts.Users = make(map[string]User)
	}
	s.opts.Users[token] = u
}

// Engine builds a gin engine serving the exchange endpoint.
func (s *Stub) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/:locale/api/auth/:provider/", s.exchange)
	r.GET("/media/*path", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func (s *Stub) exchange(c *gin.Context) {
	atomic.AddInt64(&s.requests, 1)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.AccessToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not authenticate user."})
		return
	}
	u, ok := s.lookup(body.AccessToken)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return
	}
	access, err := s.sign(u, s.opts.AccessTTL, "access")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	refresh, err := s.sign(u, 24*time.Hour, "refresh")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.opts.Logger.Info("stub exchange",
		zap.String("provider", c.Param("provider")),
		zap.String("locale", c.Param("locale")),
		zap.String("username", u.Username),
	)
	c.JSON(http.StatusOK, gin.H{
		"access_token":    access,
		"refresh_token":   refresh,
		"id":              u.ID,
		"username":        u.Username,
		"email":           u.Email,
		"first_name":      u.FirstName,
		"profile_picture": u.ProfilePicture,
	})
}

func (s *Stub) lookup(token string) (User, bool) {
	s.mu.RLock()
	u, ok := s.opts.Users[token]
	open := len(s.opts.Users) == 0
	s.mu.RUnlock()
	if ok {
		return u, true
	}
	if !open {
		return User{}, false
	}
	id := atomic.AddInt64(&s.nextID, 1)
	name := token
	if len(name) > 12 {
		name = name[:12]
	}
	return User{ID: int(id), Username: "user-" + name, Email: "user-" + name + "@example.com"}, true
}

func (s *Stub) sign(u User, ttl time.Duration, kind string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"user_id":    u.ID,
		"token_type": kind,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
}
