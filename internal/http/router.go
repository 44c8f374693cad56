package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monay-auth/internal/domain"
	"monay-auth/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas. metrics puede ser nil.
func NewRouter(
	logger *zap.Logger,
	accountH *AccountHandler,
	jwtSvc *service.JWTService,
	authorizer SessionAuthorizer,
	metrics http.Handler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	auth := r.Group("/auth")
	auth.POST("/otp/send", accountH.SendOTP)
	auth.POST("/otp/verify", accountH.VerifyOTP)
	auth.POST("/otp/verify-only", accountH.VerifyOTPOnly)
	auth.POST("/otp/resend", accountH.ResendOTP)
	auth.POST("/signup", accountH.Signup)
	auth.POST("/login", accountH.Login)
	auth.POST("/refresh", accountH.Refresh)
	auth.POST("/password/reset", accountH.ResetPassword)
	auth.POST("/admin/login", accountH.AdminLogin)
	auth.POST("/admin/password/forgot", accountH.AdminForgotPassword)
	auth.POST("/admin/password/reset", accountH.AdminResetPassword)

	requireAuth := JWTAuthMiddleware(logger, jwtSvc, authorizer)
	auth.POST("/logout", requireAuth, accountH.Logout)

	account := r.Group("/account", requireAuth)
	account.GET("/me", accountH.Me)
	account.POST("/password", accountH.ChangePassword)
	account.POST("/pin", accountH.SetPIN)
	account.POST("/pin/change", accountH.ChangePIN)
	account.POST("/pin/verify", accountH.VerifyPIN)
	account.POST("/pin/otp", accountH.ResendPINOTP)
	account.POST("/pin/reset", accountH.ResetPIN)
	account.POST("/email/verification", accountH.SendEmailVerification)
	account.POST("/firebase-token", accountH.UpdateFirebaseToken)
	account.POST("/mobile/change", accountH.RequestChange(domain.ChannelMobile))
	account.POST("/mobile/verify", accountH.VerifyChange(domain.ChannelMobile))
	account.POST("/email/change", accountH.RequestChange(domain.ChannelEmail))
	account.POST("/email/verify", accountH.VerifyChange(domain.ChannelEmail))
	account.GET("/channel-changes", accountH.ChannelHistory)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses, salvo en los
// archivos estaticos de /uploads.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/uploads/") {
			c.Writer.Header().Set("Content-Type", "application/json")
		}
		c.Next()
	}
}
