package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streetlight-watch/middlewares"
	"streetlight-watch/models"
	"streetlight-watch/services"
)

type AuthControllerConfig struct {
	CookieDomain string
	CookieSecure bool
	CookieMaxAge time.Duration
	// ExposeResetToken returns the raw reset token in the forgot-password
	// response. Development only, where no mail is sent.
	ExposeResetToken bool
	// AllowRoleSignup lets registration pick a role other than citizen.
	AllowRoleSignup bool
}

// AuthController serves registration, login and password flows.
type AuthController struct {
	auth *services.AuthService
	cfg  AuthControllerConfig
	log  *zap.Logger
}

func NewAuthController(auth *services.AuthService, cfg AuthControllerConfig, log *zap.Logger) *AuthController {
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = 72 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthController{auth: auth, cfg: cfg, log: log}
}

func (ac *AuthController) setTokenCookie(c *gin.Context, token string, maxAge time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.TokenCookie,
		Value:    token,
		MaxAge:   int(maxAge.Seconds()),
		Path:     "/",
		Domain:   ac.cfg.CookieDomain,
		Secure:   ac.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (ac *AuthController) sendSession(c *gin.Context, status int, message string, session *services.Session) {
	ac.setTokenCookie(c, session.Token, ac.cfg.CookieMaxAge)
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"token":   session.Token,
		"data":    gin.H{"user": session.User},
	})
}

// Register handles user registration
func (ac *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	if !ac.cfg.AllowRoleSignup {
		input.Role = models.RoleCitizen
	}

	session, err := ac.auth.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.sendSession(c, http.StatusCreated, "User registered successfully", session)
}

// Login handles user login
func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &input) {
		return
	}

	session, err := ac.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.sendSession(c, http.StatusOK, "Login successful", session)
}

// Logout overwrites the token cookie with a short-lived placeholder.
func (ac *AuthController) Logout(c *gin.Context) {
	ac.setTokenCookie(c, "loggedout", time.Second)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func (ac *AuthController) ChangePassword(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var input services.ChangePasswordInput
	if !bindJSON(c, &input) {
		return
	}

	session, err := ac.auth.ChangePassword(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.sendSession(c, http.StatusOK, "Password changed successfully", session)
}

func (ac *AuthController) ForgotPassword(c *gin.Context) {
	var input struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &input) {
		return
	}

	token, err := ac.auth.ForgotPassword(c.Request.Context(), input.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"success": true,
		"message": "If your email exists in our system, you will receive a password reset link",
	}
	if token != "" && ac.cfg.ExposeResetToken {
		ac.log.Debug("password reset token issued", zap.String("email", input.Email))
		body["resetToken"] = token
		body["resetURL"] = requestScheme(c) + "://" + c.Request.Host + "/api/auth/reset-password/" + token
	}
	c.JSON(http.StatusOK, body)
}

func (ac *AuthController) ResetPassword(c *gin.Context) {
	var input services.ResetPasswordInput
	if !bindJSON(c, &input) {
		return
	}

	session, err := ac.auth.ResetPassword(c.Request.Context(), c.Param("token"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.sendSession(c, http.StatusOK, "Password reset successful", session)
}

func requestScheme(c *gin.Context) string {
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		return "https"
	}
	return "http"
}
