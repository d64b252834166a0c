package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
	"github.com/noah-isme/scholarhub-api/pkg/response"
)

// Rule admits or refuses an authenticated caller.
type Rule func(c *gin.Context, claims *models.JWTClaims) bool

// Allow lets the request through when any rule admits the caller. It must be
// mounted after JWT; an anonymous caller gets 401, a refused one 403.
func Allow(rules ...Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, rule := range rules {
			if rule(c, claims) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// HasRole admits callers holding one of roles.
func HasRole(roles ...models.UserRole) Rule {
	set := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return func(_ *gin.Context, claims *models.JWTClaims) bool {
		_, ok := set[claims.Role]
		return ok
	}
}

// Staff admits admins and superadmins.
func Staff(_ *gin.Context, claims *models.JWTClaims) bool {
	return claims.Role.Staff()
}

// Self admits a caller whose user id equals the named route param.
func Self(param string) Rule {
	return func(c *gin.Context, claims *models.JWTClaims) bool {
		id := c.Param(param)
		return id != "" && id == claims.UserID
	}
}

// RequireRoles is shorthand for Allow(HasRole(roles...)).
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return Allow(HasRole(roles...))
}
