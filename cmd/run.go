package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/basit/shifter/auth"
	"github.com/basit/shifter/auth/middleware"
	"github.com/basit/shifter/handlers"
	"github.com/basit/shifter/initializers"
	"github.com/basit/shifter/jobs"
	"github.com/basit/shifter/routes"
)

func NewRun(cfg *initializers.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Shifter server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *initializers.Config) error {
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	lg := a.lg

	if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err != nil || lvl > zapcore.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.SessionTime)
	h := handlers.New(handlers.Deps{
		Files:    a.files,
		Blobs:    a.blobs,
		Settings: a.settings,
		Accounts: a.accounts,
		Cleanup:  a.cleanup,
		Tokens:   tokens,
		SiteURL:  cfg.Server.SiteURL,
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enable {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.Cleanup(ctx)
	}

	router := routes.NewRouter(cfg, lg, h, middleware.NewAuthenticator(tokens, a.accounts), limiter)

	if cfg.Cron.Enable {
		scheduler := jobs.NewScheduler(lg)
		if _, err := a.cleanup.Schedule(ctx, scheduler, cfg.Cron.CleanupSpec); err != nil {
			return err
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		lg.Info("scheduled expired file cleanup", zap.String("spec", cfg.Cron.CleanupSpec))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server started", zap.String("addr", srv.Addr), zap.String("site", cfg.Server.SiteURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	lg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	lg.Info("server stopped")
	return nil
}
