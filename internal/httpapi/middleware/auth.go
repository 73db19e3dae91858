package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillchat/quillchat/internal/identity"
)

// IdentityKey is the gin context key holding the caller's *identity.Identity.
const IdentityKey = "identity"

// AuthRequired resolves the caller through the external identity collaborator
// and rejects the request before any handler side effect when no identity is
// present.
func AuthRequired(v identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := v.FromRequest(c.Request)
		if err != nil || ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(IdentityKey, ident)
		c.Next()
	}
}

// IdentityFromContext fetches the identity set by AuthRequired.
func IdentityFromContext(c *gin.Context) (*identity.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*identity.Identity)
	return ident, ok
}
