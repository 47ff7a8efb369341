package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basit/shifter/auth/middleware"
	"github.com/basit/shifter/handlers"
	"github.com/basit/shifter/initializers"
	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/metrics"
)

const sessionCookie = "shifter_session"

// NewRouter builds the HTTP API. limiter may be nil to disable rate limiting.
func NewRouter(cfg *initializers.Config, lg *zap.Logger, h *handlers.Handler, authn *middleware.Authenticator, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(
		logging.RequestID(lg),
		logging.Access(lg),
		logging.Recovery(lg),
		metrics.Middleware(),
	)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWT.SessionTime.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
	})
	router.Use(sessions.Sessions(sessionCookie, store))

	router.GET("/metrics", metrics.Handler())

	if limiter != nil {
		router.Use(limiter.Middleware())
	}

	RegisterAuthRoutes(router, h, authn)
	RegisterFileRoutes(router, h, authn)
	RegisterAdminRoutes(router, h, authn)
	return router
}
