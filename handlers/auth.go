package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/basit/shifter/auth"
	"github.com/basit/shifter/auth/middleware"
	"github.com/basit/shifter/models"
)

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// startSession issues tokens and stores the user in the cookie session.
func (h *Handler) startSession(c *gin.Context, user *models.User, status int) {
	access, refresh, err := h.tokens.GenerateTokens(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	session := sessions.Default(c)
	session.Set(middleware.SessionKey, user.ID.String())
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"access_token":             access,
		"refresh_token":            refresh,
		"user":                     user,
		"change_password_on_login": user.ChangePasswordOnLogin,
	})
}

func (h *Handler) SetupStatus(c *gin.Context) {
	required, err := h.accounts.SetupRequired(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup_required": required})
}

// Setup creates the first staff account and logs it in.
func (h *Handler) Setup(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	user, err := h.accounts.Setup(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, user, http.StatusCreated)
}

func (h *Handler) Login(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	user, err := h.accounts.Authenticate(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, user, http.StatusOK)
}

func (h *Handler) Refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	userID, err := h.tokens.ValidateToken(body.RefreshToken, auth.TokenRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	user, err := h.accounts.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	h.startSession(c, user, http.StatusOK)
}

func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	user := middleware.CurrentUser(c)
	if err := h.accounts.ChangePassword(c.Request.Context(), user.ID, body.CurrentPassword, body.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
