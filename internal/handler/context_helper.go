package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarhub-api/internal/middleware"
	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
	"github.com/noah-isme/scholarhub-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// requireActor returns the caller's claims and request metadata for audit
// entries. It writes a 401 and reports false when the caller is anonymous.
func requireActor(c *gin.Context) (*models.JWTClaims, models.LoginRequest, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, models.LoginRequest{}, false
	}
	return claims, models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}, true
}

// bindJSON decodes the request body into dest, answering 400 on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	return true
}

func isAdmin(claims *models.JWTClaims) bool {
	return claims != nil && claims.Role.Staff()
}

// splitCommunities accepts repeated and comma separated community params.
func splitCommunities(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func bindCatalogQuery(c *gin.Context, q *models.CatalogQuery) error {
	if err := c.ShouldBindQuery(q); err != nil {
		return err
	}
	q.Communities = splitCommunities(q.Communities)
	return nil
}

// FeatureDisabled answers routes whose feature flag is off.
func FeatureDisabled(c *gin.Context) {
	response.Error(c, appErrors.ErrFeatureDisabled)
}
