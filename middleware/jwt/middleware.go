package jwt

import (
	"net/http"
	"strings"

	"github.com/goaltrack/goaltrack/services/jwt"
	"github.com/labstack/echo/v4"
)

const (
	// CookieName is the session cookie set at login and cleared at logout.
	CookieName = "authToken"

	userIDKey = "_jwt_user_id"
	claimsKey = "_jwt_claims"
)

// RequireSession guards a route with session token verification. The
// token is read from the authToken cookie (browser clients) or from a
// Bearer Authorization header (API clients); the cookie wins when both
// are present.
func RequireSession(jwtService *jwt.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := extractToken(c)
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			claims, err := jwtService.Validate(tokenString)
			if err != nil {
				switch err {
				case jwt.ErrExpiredToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "session has expired")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
				}
			}

			c.Set(userIDKey, claims.UserID)
			c.Set(claimsKey, claims)

			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

func GetUserID(c echo.Context) uint {
	if userID, ok := c.Get(userIDKey).(uint); ok {
		return userID
	}
	return 0
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(claimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
