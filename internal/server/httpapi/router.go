package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/scanpass/internal/api"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is added to MaxVideoBytes for the form fields and
// part headers of an upload.
const multipartOverhead = 1 << 20

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), AccessLog(h.logger), CORS())
	if h.opts.MaxVideoBytes > 0 {
		r.MaxMultipartMemory = h.opts.MaxVideoBytes + multipartOverhead
		r.Use(limitBody(h.opts.MaxVideoBytes + multipartOverhead))
	}

	group := r.Group("/api")
	{
		group.GET("/health", h.Health)

		group.POST("/register", h.Register)
		group.POST("/register/visual", h.RegisterVisual)
		group.POST("/login", h.Login)
		group.POST("/login/challenge", h.LoginChallenge)
		group.POST("/login/visual", h.LoginVisual)

		protected := group.Group("")
		protected.Use(h.Authenticate())
		{
			protected.POST("/logout", h.Logout)
			protected.GET("/challenge", h.Challenge)
			protected.POST("/enroll-object", h.EnrollObject)
			protected.POST("/authenticate", h.AuthenticateObject)
			protected.POST("/revoke", h.Revoke)
			protected.GET("/secure-data", h.SecureData)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Success: false, Error: api.CodeNotFound, Message: "route not found"})
	})
	return r
}
