package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/basit/shifter/accounts"
	"github.com/basit/shifter/auth/middleware"
)

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.accounts.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser is staff creating an account. The new user has to pick their
// own password at first login.
func (h *Handler) CreateUser(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		IsStaff  bool   `json:"is_staff"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	user, err := h.accounts.Create(c.Request.Context(), accounts.CreateParams{
		Email:                 body.Email,
		Password:              body.Password,
		IsStaff:               body.IsStaff,
		ChangePasswordOnLogin: true,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func userParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), id, middleware.CurrentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	id, ok := userParam(c)
	if !ok {
		return
	}
	var body struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := h.accounts.ResetPassword(c.Request.Context(), id, body.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
