package delivery

import (
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "welcome-agent/internal/auth/domain"
	"welcome-agent/internal/auth/usecase"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

// SessionCookie is the HTTP-only cookie carrying the signed session token.
const SessionCookie = "wa_session"

const userKey = "user"

// AuthMiddleware accepts the session cookie, falling back to an Authorization: Bearer header.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := authUsecase.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(userKey, user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// CurrentUser returns the authenticated user placed on the context by AuthMiddleware.
func CurrentUser(c *gin.Context) *authdomain.User {
	value, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := value.(*authdomain.User)
	return user
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
