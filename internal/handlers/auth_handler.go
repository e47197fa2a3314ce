package handlers

import (
	"errors"
	"net/http"

	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes sign-in and sign-out.
type AuthHandler struct {
	auth gateway.Auth
}

func NewAuthHandler(auth gateway.Auth) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, gateway.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, gateway.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "sign-in is unavailable in demo mode"})
	case err != nil:
		abortWithError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, session)
	}
}

// POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "signed out"})
}

// GET /v1/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	switch s := h.auth.Session(c.Request.Context(), middleware.BearerToken(c)).(type) {
	case gateway.LoggedIn:
		c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": s.User, "expires_at": s.ExpiresAt})
	default:
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
	}
}
