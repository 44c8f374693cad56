package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monay-auth/internal/domain"
	"monay-auth/internal/service"
)

// AccountHandler expone los flujos de cuenta. Es una capa delgada: parsea, delega y
// traduce estados y errores.
type AccountHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
}

// NewAccountHandler crea una instancia de AccountHandler con dependencias necesarias.
func NewAccountHandler(logger *zap.Logger, accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{logger: logger, accounts: accounts}
}

func (h *AccountHandler) bind(c *gin.Context, op string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid "+op+" request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func (h *AccountHandler) accountID(c *gin.Context) (string, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return "", false
	}
	return claims.UserID, true
}

func (h *AccountHandler) respond(c *gin.Context, op string, st service.Status, err error) {
	if err != nil {
		writeError(c, h.logger, op, err)
		return
	}
	writeStatus(c, st)
}

// SendOTP maneja POST /auth/otp/send.
func (h *AccountHandler) SendOTP(c *gin.Context) {
	var req struct {
		Mobile string `json:"mobile" binding:"required"`
	}
	if !h.bind(c, "send otp", &req) {
		return
	}
	st, err := h.accounts.SendOTP(c.Request.Context(), req.Mobile)
	h.respond(c, "send otp", st, err)
}

// Signup maneja POST /auth/signup.
func (h *AccountHandler) Signup(c *gin.Context) {
	var req service.SignupInput
	if !h.bind(c, "signup", &req) {
		return
	}
	res, err := h.accounts.Signup(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "signup", err)
		return
	}
	if res.Status == service.StatusSent {
		c.JSON(http.StatusCreated, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

type loginRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	FirebaseToken string `json:"firebaseToken"`
	DeviceType    string `json:"deviceType"`
	DeviceID      string `json:"deviceId"`
	DeviceModel   string `json:"deviceModel"`
	OSVersion     string `json:"osVersion"`
	AppVersion    string `json:"appVersion"`
	Timezone      string `json:"timezone"`
}

// Login maneja POST /auth/login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, "login", &req) {
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), service.LoginInput{
		Username:      req.Username,
		Password:      req.Password,
		FirebaseToken: req.FirebaseToken,
		DeviceType:    req.DeviceType,
		Device: service.DeviceInfo{
			DeviceID:    req.DeviceID,
			DeviceModel: req.DeviceModel,
			OSVersion:   req.OSVersion,
			AppVersion:  req.AppVersion,
			Timezone:    req.Timezone,
			IP:          c.ClientIP(),
		},
	})
	h.writeLogin(c, "login", res, err)
}

// AdminLogin maneja POST /auth/admin/login.
func (h *AccountHandler) AdminLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !h.bind(c, "admin login", &req) {
		return
	}
	res, err := h.accounts.AdminLogin(c.Request.Context(), req.Email, req.Password)
	h.writeLogin(c, "admin login", res, err)
}

// Refresh maneja POST /auth/refresh.
func (h *AccountHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !h.bind(c, "refresh", &req) {
		return
	}
	res, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	h.writeLogin(c, "refresh", res, err)
}

func (h *AccountHandler) writeLogin(c *gin.Context, op string, res service.LoginResult, err error) {
	if err != nil {
		writeError(c, h.logger, op, err)
		return
	}
	if res.Status == service.StatusInvalid {
		c.JSON(http.StatusUnauthorized, gin.H{"status": res.Status, "error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type verifyRequest struct {
	Username string `json:"username" binding:"required"`
	OTP      string `json:"otp" binding:"required"`
}

// VerifyOTP maneja POST /auth/otp/verify.
func (h *AccountHandler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, "verify otp", &req) {
		return
	}
	res, err := h.accounts.VerifyOTP(c.Request.Context(), req.Username, req.OTP)
	h.writeVerify(c, "verify otp", res, err)
}

// VerifyOTPOnly maneja POST /auth/otp/verify-only.
func (h *AccountHandler) VerifyOTPOnly(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, "verify otp only", &req) {
		return
	}
	res, err := h.accounts.VerifyOTPOnly(c.Request.Context(), req.Username, req.OTP)
	h.writeVerify(c, "verify otp only", res, err)
}

func (h *AccountHandler) writeVerify(c *gin.Context, op string, res service.VerifyResult, err error) {
	if err != nil {
		writeError(c, h.logger, op, err)
		return
	}
	if !res.OK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired code", "isEmail": res.IsEmail})
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResendOTP maneja POST /auth/otp/resend.
func (h *AccountHandler) ResendOTP(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Type     string `json:"type"`
	}
	if !h.bind(c, "resend otp", &req) {
		return
	}
	st, err := h.accounts.ResendVerificationCode(c.Request.Context(), req.Username, req.Type)
	h.respond(c, "resend otp", st, err)
}

// ResetPassword maneja POST /auth/password/reset.
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		OTP         string `json:"otp" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if !h.bind(c, "reset password", &req) {
		return
	}
	st, err := h.accounts.ResetPassword(c.Request.Context(), req.Username, req.OTP, req.NewPassword)
	h.respond(c, "reset password", st, err)
}

// AdminForgotPassword maneja POST /auth/admin/password/forgot.
func (h *AccountHandler) AdminForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !h.bind(c, "admin forgot password", &req) {
		return
	}
	st, err := h.accounts.AdminForgotPassword(c.Request.Context(), req.Email)
	h.respond(c, "admin forgot password", st, err)
}

// AdminResetPassword maneja POST /auth/admin/password/reset.
func (h *AccountHandler) AdminResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if !h.bind(c, "admin reset password", &req) {
		return
	}
	st, err := h.accounts.AdminResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	h.respond(c, "admin reset password", st, err)
}

// Logout maneja POST /auth/logout.
func (h *AccountHandler) Logout(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength > 0 && !h.bind(c, "logout", &req) {
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), id, req.RefreshToken); err != nil {
		writeError(c, h.logger, "logout", err)
		return
	}
	writeStatus(c, service.StatusSuccess)
}

// Me maneja GET /account/me.
func (h *AccountHandler) Me(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	view, err := h.accounts.Profile(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": view})
}

// ChangePassword maneja POST /account/password.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if !h.bind(c, "change password", &req) {
		return
	}
	st, err := h.accounts.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword)
	h.respond(c, "change password", st, err)
}

// SetPIN maneja POST /account/pin.
func (h *AccountHandler) SetPIN(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		PIN string `json:"mpin" binding:"required"`
	}
	if !h.bind(c, "set pin", &req) {
		return
	}
	st, err := h.accounts.SetPIN(c.Request.Context(), id, req.PIN)
	h.respond(c, "set pin", st, err)
}

// ChangePIN maneja POST /account/pin/change.
func (h *AccountHandler) ChangePIN(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		CurrentPIN string `json:"currentMpin" binding:"required"`
		PIN        string `json:"mpin" binding:"required"`
	}
	if !h.bind(c, "change pin", &req) {
		return
	}
	st, err := h.accounts.ChangePIN(c.Request.Context(), id, req.CurrentPIN, req.PIN)
	h.respond(c, "change pin", st, err)
}

// VerifyPIN maneja POST /account/pin/verify.
func (h *AccountHandler) VerifyPIN(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		PIN string `json:"mpin" binding:"required"`
	}
	if !h.bind(c, "verify pin", &req) {
		return
	}
	valid, err := h.accounts.VerifyPIN(c.Request.Context(), id, req.PIN)
	if err != nil {
		writeError(c, h.logger, "verify pin", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// ResendPINOTP maneja POST /account/pin/otp.
func (h *AccountHandler) ResendPINOTP(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	st, err := h.accounts.ResendPINOTP(c.Request.Context(), id)
	h.respond(c, "resend pin otp", st, err)
}

// ResetPIN maneja POST /account/pin/reset.
func (h *AccountHandler) ResetPIN(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username" binding:"required"`
		OTP      string `json:"otp" binding:"required"`
		PIN      string `json:"mpin" binding:"required"`
	}
	if !h.bind(c, "reset pin", &req) {
		return
	}
	st, err := h.accounts.ResetPIN(c.Request.Context(), id, req.Username, req.OTP, req.PIN)
	h.respond(c, "reset pin", st, err)
}

// SendEmailVerification maneja POST /account/email/verification.
func (h *AccountHandler) SendEmailVerification(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	st, err := h.accounts.SendEmailVerificationCode(c.Request.Context(), id)
	h.respond(c, "send email verification", st, err)
}

// UpdateFirebaseToken maneja POST /account/firebase-token.
func (h *AccountHandler) UpdateFirebaseToken(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	var req struct {
		FirebaseToken string `json:"firebaseToken" binding:"required"`
	}
	if !h.bind(c, "update firebase token", &req) {
		return
	}
	st, err := h.accounts.UpdateFirebaseToken(c.Request.Context(), id, req.FirebaseToken)
	h.respond(c, "update firebase token", st, err)
}

// RequestChange maneja POST /account/{mobile,email}/change.
func (h *AccountHandler) RequestChange(ch domain.Channel) gin.HandlerFunc {
	op := "change " + string(ch)
	return func(c *gin.Context) {
		id, ok := h.accountID(c)
		if !ok {
			return
		}
		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if !h.bind(c, op, &req) {
			return
		}
		st, err := h.accounts.RequestChannelChange(c.Request.Context(), id, ch, req.Value)
		h.respond(c, op, st, err)
	}
}

// VerifyChange maneja POST /account/{mobile,email}/verify.
func (h *AccountHandler) VerifyChange(ch domain.Channel) gin.HandlerFunc {
	op := "verify " + string(ch) + " change"
	return func(c *gin.Context) {
		id, ok := h.accountID(c)
		if !ok {
			return
		}
		var req struct {
			Value string `json:"value" binding:"required"`
			OTP   string `json:"otp" binding:"required"`
		}
		if !h.bind(c, op, &req) {
			return
		}
		st, err := h.accounts.VerifyChannelChange(c.Request.Context(), id, ch, req.Value, req.OTP)
		h.respond(c, op, st, err)
	}
}

// ChannelHistory maneja GET /account/channel-changes.
func (h *AccountHandler) ChannelHistory(c *gin.Context) {
	id, ok := h.accountID(c)
	if !ok {
		return
	}
	changes, err := h.accounts.ChannelHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "channel history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}
