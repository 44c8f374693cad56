package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/service"
)

const (
	authClaimsKey = "auth_claims"
	authTokenKey  = "auth_token"
)

// SessionAuthorizer confirma que el access token sigue ligado al binding de la cuenta.
type SessionAuthorizer interface {
	Authorize(ctx context.Context, claims service.Claims, accessToken string) (domain.Account, error)
}

// JWTAuthMiddleware valida JWT access tokens y guarda claims en el contexto. Con un
// authorizer, ademas exige que el token sea el del binding vigente (logout lo invalida).
func JWTAuthMiddleware(logger *zap.Logger, jwtSvc *service.JWTService, authorizer SessionAuthorizer) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		if authorizer != nil {
			if _, err := authorizer.Authorize(c.Request.Context(), claims, token); err != nil {
				if apperr.KindOf(err) == apperr.KindInfrastructure {
					logger.Error("authorize session failed", zap.String("account_id", claims.UserID), zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "could not authorize"})
					c.Abort()
					return
				}
				c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				c.Abort()
				return
			}
		}

		c.Set(authClaimsKey, claims)
		c.Set(authTokenKey, token)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

