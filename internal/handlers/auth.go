package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"hospital-app-server/internal/config"
	"hospital-app-server/internal/mailer"
	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/repository"
	"hospital-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Users repository.UserRepository
	Cfg   *config.Config
	Mail  mailer.Notifier
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users repository.UserRepository, cfg *config.Config, mail mailer.Notifier) *AuthHandler {
	return &AuthHandler{Users: users, Cfg: cfg, Mail: mail}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// Register creates an account. Anyone may register a patient; doctor and
// admin accounts require a valid admin token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RolePatient
	}
	if role != models.RolePatient && role != models.RoleDoctor && role != models.RoleAdmin {
		utils.BadRequest(c, "Invalid role. Allowed roles: patient, doctor, admin")
		return
	}

	if role == models.RoleDoctor || role == models.RoleAdmin {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if authHeader == "" || len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Authentication required. Only admin can register doctor/admin accounts.")
			return
		}
		claims, err := utils.ValidateToken(parts[1], h.Cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token. Please provide a valid admin token.")
			return
		}
		if claims.Role != models.RoleAdmin {
			utils.Forbidden(c, "Only admin can register doctor/admin accounts.")
			return
		}
	}

	if _, err := h.Users.FindByUsername(req.Username); err == nil {
		utils.BadRequest(c, "Username already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ServerError(c, err)
		return
	}
	if _, err := h.Users.FindByEmail(req.Email); err == nil {
		utils.BadRequest(c, "Email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ServerError(c, err)
		return
	}

	verificationToken, err := utils.GenerateSecureToken()
	if err != nil {
		utils.ServerError(c, err)
		return
	}
	tokenExpiry := time.Now().Add(time.Duration(h.Cfg.VerificationTokenExpiry) * time.Hour)

	user := models.User{
		Username:                     req.Username,
		Email:                        req.Email,
		Role:                         role,
		IsActive:                     true,
		EmailVerificationToken:       &verificationToken,
		EmailVerificationTokenExpiry: &tokenExpiry,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.ServerError(c, err)
		return
	}

	if err := h.Users.Create(&user); err != nil {
		utils.ServerError(c, err)
		return
	}

	emailSent := true
	if err := h.Mail.SendVerificationEmail(user.Email, user.Username, verificationToken); err != nil {
		emailSent = false
		log.Printf("Failed to send verification email to %s: %v", user.Email, err)
	}

	message := "User registered successfully. Please check your email to verify your account."
	if !emailSent {
		message = "User registered successfully, but email verification failed. Please use the resend verification endpoint."
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
		"emailSent": emailSent,
	})
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and issues an access token carrying the user's
// id, username and role.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.BadRequest(c, "Please provide username and password")
		return
	}

	user, err := h.Users.FindByUsername(req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Incorrect password")
		return
	}

	token, err := utils.GenerateToken(user, h.Cfg)
	if err != nil {
		utils.ServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}

// Logout acknowledges a logout. Tokens are stateless, so there is nothing to
// revoke server-side.
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logout successful",
		"user": gin.H{
			"id":       principal.UserID,
			"username": principal.Username,
		},
	})
}

// VerifyEmailRequest represents the request body for email verification.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmail marks an account verified from a token sent by email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.FindByVerificationToken(req.Token)
	if err != nil || user.EmailVerificationTokenExpiry == nil ||
		user.EmailVerificationTokenExpiry.Before(time.Now()) {
		utils.BadRequest(c, "Invalid or expired verification token")
		return
	}

	if user.IsEmailVerified {
		utils.BadRequest(c, "Email already verified")
		return
	}

	user.IsEmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationTokenExpiry = nil
	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully! You can now login to your account.",
	})
}

// EmailRequest carries just an email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendVerification issues a fresh verification token. The response does
// not reveal whether the address has an account.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.FindByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "If that email exists and is not verified, a verification email has been sent",
		})
		return
	}

	if user.IsEmailVerified {
		utils.BadRequest(c, "Email is already verified")
		return
	}

	verificationToken, err := utils.GenerateSecureToken()
	if err != nil {
		utils.ServerError(c, err)
		return
	}
	tokenExpiry := time.Now().Add(time.Duration(h.Cfg.VerificationTokenExpiry) * time.Hour)
	user.EmailVerificationToken = &verificationToken
	user.EmailVerificationTokenExpiry = &tokenExpiry
	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	emailSent := true
	if err := h.Mail.SendVerificationEmail(user.Email, user.Username, verificationToken); err != nil {
		emailSent = false
		log.Printf("Failed to send verification email to %s: %v", user.Email, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Verification email sent. Please check your inbox.",
		"emailSent": emailSent,
	})
}

// ForgotPassword issues a time-limited reset token by email. The response
// does not reveal whether the address has an account.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.FindByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "If that email exists, a password reset link has been sent",
		})
		return
	}

	resetToken, err := utils.GenerateSecureToken()
	if err != nil {
		utils.ServerError(c, err)
		return
	}
	tokenExpiry := time.Now().Add(time.Duration(h.Cfg.PasswordResetTokenExpiry) * time.Minute)
	user.ResetToken = &resetToken
	user.ResetTokenExpiry = &tokenExpiry
	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	if err := h.Mail.SendPasswordResetEmail(user.Email, resetToken); err != nil {
		log.Printf("Failed to send password reset email to %s: %v", user.Email, err)
		// A reset link the user never received must not stay live.
		user.ResetToken = nil
		user.ResetTokenExpiry = nil
		if uerr := h.Users.Update(user); uerr != nil {
			log.Printf("Failed to clear reset token: %v", uerr)
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse{
			Message: "Failed to send password reset email. Please try again later.",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "If that email exists, a password reset link has been sent. Please check your inbox.",
		"emailSent": true,
	})
}

// ResetPasswordRequest represents the request body for a token-based reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ResetPassword sets a new password from a valid reset token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if len(req.NewPassword) < 6 {
		utils.BadRequest(c, "Password must be at least 6 characters long")
		return
	}

	user, err := h.Users.FindByResetToken(req.Token)
	if err != nil || user.ResetTokenExpiry == nil || user.ResetTokenExpiry.Before(time.Now()) {
		utils.BadRequest(c, "Invalid or expired reset token. Please request a new password reset.")
		return
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		utils.ServerError(c, err)
		return
	}
	user.ResetToken = nil
	user.ResetTokenExpiry = nil
	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	log.Printf("Password reset successful for user: %s", user.Username)

	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset successfully! You can now login with your new password.",
	})
}

// ChangePasswordRequest represents the request body for an authenticated
// password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// ChangePassword updates the caller's password after verifying the current
// one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req ChangePasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if len(req.NewPassword) < 6 {
		utils.BadRequest(c, "New password must be at least 6 characters long")
		return
	}

	user, err := h.Users.FindByID(principal.UserID)
	if err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	if !user.CheckPassword(req.CurrentPassword) {
		utils.Unauthorized(c, "Current password is incorrect")
		return
	}
	if user.CheckPassword(req.NewPassword) {
		utils.BadRequest(c, "New password must be different from your current password")
		return
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		utils.ServerError(c, err)
		return
	}
	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	log.Printf("Password changed successfully for user: %s", user.Username)

	c.JSON(http.StatusOK, gin.H{
		"message": "Password changed successfully",
	})
}
