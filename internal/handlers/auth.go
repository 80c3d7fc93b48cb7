package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request. Without an
// organizationId a new organization is created and the user becomes its admin.
type RegisterRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Organization   string `json:"organization"`
	OrganizationID string `json:"organizationId"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if !decode(w, req, &loginReq) {
		return
	}

	// 1. Find User
	var user models.UserAuth
	if err := r.db.Where("email = ? AND is_active = ?", strings.ToLower(loginReq.Email), true).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 2. Check Password
	if !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		r.db.Model(&user).Update("failed_login_attempts", gorm.Expr("failed_login_attempts + 1"))
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := time.Now()
	r.db.Model(&user).Updates(map[string]interface{}{"last_login": now, "failed_login_attempts": 0})
	user.LastLogin = &now

	// 4. Generate Tokens
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// register handles user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if !decode(w, req, &regReq) {
		return
	}
	if regReq.Email == "" || regReq.Password == "" || regReq.Username == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	// 1. Hash Password
	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	// 2. Create User (and organization)
	user := models.UserAuth{
		Username: regReq.Username,
		Email:    strings.ToLower(regReq.Email),
		Password: hashedPassword,
		Name:     regReq.Name,
		Role:     "visitor",
		IsActive: true,
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if regReq.OrganizationID != "" {
			var org models.Organization
			if err := tx.Where("id = ?", regReq.OrganizationID).Take(&org).Error; err != nil {
				return err
			}
			user.OrganizationID = org.ID
		} else {
			name := regReq.Organization
			if name == "" {
				name = regReq.Name
			}
			org := models.Organization{Name: name}
			if err := tx.Create(&org).Error; err != nil {
				return err
			}
			user.OrganizationID = org.ID
			user.Role = "admin"
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create user (email, username or organization invalid)")
		return
	}
	zap.L().Info("👤 User registered", zap.String("user", user.ID), zap.String("org", user.OrganizationID))

	// 3. Generate Tokens for immediate login
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "User created but failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// logout handles user logout
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	// Tokens are stateless; the client drops them
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
