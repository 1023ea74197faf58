package app

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/config"
)

const authSubjectKey = "auth_subject"

// AuthMiddleware accepts a bearer token that is either an HS256 JWT signed
// with the configured secret or one of the static tokens.
func (a *App) AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			a.respondError(c, apperr.Clone(apperr.ErrUnauthorized, "missing authorization"))
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			a.respondError(c, apperr.Clone(apperr.ErrUnauthorized, "invalid authorization format"))
			return
		}
		tokenStr := parts[1]

		if len(secret) > 0 {
			claims := &jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
			if err == nil {
				c.Set(authSubjectKey, claims.Subject)
				c.Next()
				return
			}
		}

		for _, t := range cfg.StaticTokens {
			if subtle.ConstantTimeCompare([]byte(tokenStr), []byte(t)) == 1 {
				c.Set(authSubjectKey, "static")
				c.Next()
				return
			}
		}

		a.respondError(c, apperr.Clone(apperr.ErrUnauthorized, "invalid token"))
	}
}
