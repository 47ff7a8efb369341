package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/basit/shifter/auth/middleware"
	"github.com/basit/shifter/handlers"
)

func RegisterFileRoutes(r *gin.Engine, h *handlers.Handler, authn *middleware.Authenticator) {
	// public share links
	r.GET("/f/:token", h.PublicFile)
	r.GET("/f/:token/qr", h.FileQR)
	r.GET("/download/:token", authn.AuthOptional(), h.DownloadFile)

	fileGroup := r.Group("/api/files")
	fileGroup.Use(authn.AuthRequired(), middleware.PasswordCurrent())

	fileGroup.GET("/options", h.UploadOptions)
	fileGroup.POST("", h.UploadFile)
	fileGroup.GET("", h.ListFiles)
	fileGroup.GET("/:token", h.GetFile)
	fileGroup.DELETE("/:token", h.DeleteFile)
}
