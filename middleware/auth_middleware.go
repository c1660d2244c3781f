// api/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsestream/api/utils"
)

// AuthRequired guards the operator surfaces (stats, dead letters). It accepts
// either the static operator key in X-API-KEY or a JWT from the login flow,
// via cookie or Authorization bearer header.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		opKey := c.GetHeader("X-API-KEY")
		if opKey != "" && opKey == os.Getenv("AUTH_DEFAULT") {
			c.Next()
			return
		}

		tokenString, err := c.Cookie("jwt_token")
		if err != nil {
			tokenString = c.GetHeader("Authorization")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
				return
			}
			if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
				tokenString = tokenString[7:]
			}
		}

		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			log.Warn().Err(err).Msg("invalid JWT token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}
