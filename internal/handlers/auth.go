package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type AuthHandler struct {
	users      *services.UserService
	jwtService *services.JWTService
}

func NewAuthHandler(users *services.UserService, jwtService *services.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwtService: jwtService}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Signup failed", err)
		return
	}

	h.issue(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Login failed", err)
		return
	}

	h.issue(c, http.StatusOK, user)
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	token, expires, err := h.jwtService.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		respondError(c, "Failed to generate token", err)
		return
	}

	c.JSON(status, models.AuthResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      user,
	})
}
