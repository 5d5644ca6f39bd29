package avatar

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/pkg/response"
)

// Handler exposes avatar resolution over HTTP.
type Handler struct {
	resolver *Resolver
}

// NewHandler returns a Handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// RegisterRoutes mounts avatar routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, sessionMW gin.HandlerFunc) {
	rg.GET("/avatar", h.resolve)
	rg.GET("/me/avatar", sessionMW, h.mine)
}

func (h *Handler) resolve(c *gin.Context) {
	var opts Options
	if err := c.ShouldBindQuery(&opts); err != nil {
		response.ValidationError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.resolver.Resolve(opts))
}

func (h *Handler) mine(c *gin.Context) {
	val, _ := c.Get(response.SessionContextKey)
	sess, ok := val.(*authbridge.Session)
	if !ok || sess == nil {
		response.Unauthorized(c, "missing session")
		return
	}
	c.JSON(http.StatusOK, h.resolver.Resolve(Options{
		Src:  sess.Subject.ProfilePicture,
		Size: response.GetInt(c, "size", DefaultSize),
		Alt:  sess.Subject.Username,
	}))
}
