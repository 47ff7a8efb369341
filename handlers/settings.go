package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basit/shifter/jobs"
)

func (h *Handler) settingsPage(c *gin.Context) {
	ctx := c.Request.Context()
	entries, err := h.settings.All(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	active, err := h.files.CountActive(ctx, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	expired, err := h.files.CountExpired(ctx, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":      entries,
		"active_files":  active,
		"expired_files": expired,
	})
}

func (h *Handler) GetSettings(c *gin.Context) {
	h.settingsPage(c)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := h.settings.Update(c.Request.Context(), body); err != nil {
		respondError(c, err)
		return
	}
	h.settingsPage(c)
}

// CleanupFiles runs the expiry sweep on demand.
func (h *Handler) CleanupFiles(c *gin.Context) {
	n, err := h.cleanup.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":           false,
			"num_files_deleted": n,
			"error":             "Cleanup did not complete",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"num_files_deleted": n,
		"message":           jobs.Summary(n),
	})
}
