package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basit/shifter/accounts"
	"github.com/basit/shifter/files"
	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/settings"
)

func fieldErrors(c *gin.Context, status int, fields map[string]string) {
	body := make(map[string][]string, len(fields))
	for field, msg := range fields {
		body[field] = []string{msg}
	}
	c.AbortWithStatusJSON(status, gin.H{"errors": body})
}

// respondError maps service errors onto HTTP responses. Anything it does
// not recognise is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	var (
		fileErr     *files.ValidationError
		settingsErr *settings.ValidationError
	)
	switch {
	case errors.As(err, &fileErr):
		status := http.StatusBadRequest
		if fileErr.Code == files.CodeFileTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		fieldErrors(c, status, map[string]string{fileErr.Field: fileErr.Message})
	case errors.As(err, &settingsErr):
		fieldErrors(c, http.StatusBadRequest, settingsErr.Fields)
	case errors.Is(err, files.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "File not found"})
	case errors.Is(err, accounts.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, accounts.ErrEmailTaken), errors.Is(err, accounts.ErrInvalidEmail):
		fieldErrors(c, http.StatusBadRequest, map[string]string{"email": err.Error()})
	case errors.Is(err, accounts.ErrPasswordTooShort):
		fieldErrors(c, http.StatusBadRequest, map[string]string{"password": err.Error()})
	case errors.Is(err, accounts.ErrSelfDelete):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, accounts.ErrAlreadySetUp):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
