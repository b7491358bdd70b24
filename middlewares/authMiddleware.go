package middlewares

import (
	"net/http"
	"strings"

	"github.com/gemcertify/certify_backend/models"
	"github.com/gemcertify/certify_backend/utils"
	"github.com/gin-gonic/gin"
)

// AdminCookieName is the HTTP-only cookie carrying the session token.
const AdminCookieName = "adminToken"

// AuthMiddleware gates the /admin routes. The token comes from the
// adminToken cookie (browser clients) or a Bearer Authorization header
// (API clients have no cookie jar). Signature and expiry are checked, then
// the token subject is confirmed to still exist: a deleted admin's token is
// dead even before it expires.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(AdminCookieName)
		if err != nil || token == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		validated, err := utils.JwtValidate(token)
		if err != nil || !validated.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, ok := validated.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		if _, err := models.GetAdmin(c.Request.Context(), claim.ID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetAdminIdInContext(ctx, claim.ID)
		ctx = utils.SetUsernameInContext(ctx, claim.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
