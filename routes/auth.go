package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/basit/shifter/auth/middleware"
	"github.com/basit/shifter/handlers"
)

func RegisterAuthRoutes(r *gin.Engine, h *handlers.Handler, authn *middleware.Authenticator) {
	authGroup := r.Group("/api/auth")
	authGroup.GET("/setup", h.SetupStatus)
	authGroup.POST("/setup", h.Setup)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", h.Logout)

	authGroup.Use(authn.AuthRequired())
	authGroup.GET("/me", h.Me)
	authGroup.PUT("/password", h.ChangePassword)
}

func RegisterAdminRoutes(r *gin.Engine, h *handlers.Handler, authn *middleware.Authenticator) {
	admin := r.Group("/api")
	admin.Use(authn.AuthRequired(), middleware.PasswordCurrent(), middleware.StaffRequired())

	admin.GET("/settings", h.GetSettings)
	admin.PUT("/settings", h.UpdateSettings)
	admin.POST("/cleanup-files", h.CleanupFiles)

	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
	admin.POST("/users/:id/reset-password", h.ResetPassword)
}
