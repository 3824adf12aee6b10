package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinGuard is Guard for gin routers. The principal is stored both in the
// gin context under PrincipalKey and in the request context.
func GinGuard(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := BearerToken(c.GetHeader("Authorization"))
		if auth == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": InvalidTokenMessage})
			return
		}

		p, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(StatusFor(err), gin.H{"message": messageFor(err)})
			return
		}

		c.Set(PrincipalKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// PrincipalKey is the gin context key set by GinGuard.
const PrincipalKey = "principal"
