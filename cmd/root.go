package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/basit/shifter/accounts"
	"github.com/basit/shifter/cache"
	"github.com/basit/shifter/files"
	"github.com/basit/shifter/initializers"
	"github.com/basit/shifter/jobs"
	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/settings"
	"github.com/basit/shifter/storage"
)

func New() *cobra.Command {
	var cfg initializers.Config
	loader := initializers.NewConfigLoader()

	cmd := &cobra.Command{
		Use:          "shifter",
		Short:        "Shifter file sharing server",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loader.Load(cmd.Flags())
			if err != nil {
				return err
			}
			cfg = *loaded

			lvl, err := zapcore.ParseLevel(cfg.Log.Level)
			if err != nil {
				lvl = zapcore.InfoLevel
			}
			logging.SetConfig(&logging.Config{
				Level:    lvl,
				FilePath: cfg.Log.File,
			})
			return nil
		},
	}
	loader.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		NewRun(&cfg),
		NewCleanupExpired(&cfg),
		NewCreateSettings(&cfg),
		NewCreateUser(&cfg),
		NewVersion(),
	)
	return cmd
}

// app holds the services shared by the server and the management commands.
type app struct {
	lg       *zap.Logger
	db       *gorm.DB
	blobs    storage.Blob
	settings *settings.Resolver
	files    *files.Store
	accounts *accounts.Service
	cleanup  *jobs.Cleanup
}

func bootstrap(ctx context.Context, cfg *initializers.Config) (*app, error) {
	lg := logging.DefaultLogger()

	db, err := initializers.ConnectToDatabase(&cfg.DB, lg)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to set up storage: %w", err), initializers.CloseDatabase(db))
	}

	cacher := cache.New(cache.Options{
		MaxSize:   cfg.Cache.MaxSize,
		RedisAddr: cfg.Cache.RedisAddr,
		RedisPass: cfg.Cache.RedisPass,
	})
	resolver := settings.NewResolver(db, settings.WithCache(cacher, cfg.Cache.TTL))
	store := files.NewStore(db, blobs, files.NewExpiryPolicy(resolver))

	accountService := accounts.NewService(db, store)
	accountService.OnDelete(func(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
		n, err := store.WithDB(tx).ExpireAllForOwner(ctx, userID)
		if err != nil {
			return err
		}
		logging.FromContext(ctx).Info("expired files of deleted user",
			zap.String("user", userID.String()), zap.Int64("files", n))
		return nil
	})

	return &app{
		lg:       lg,
		db:       db,
		blobs:    blobs,
		settings: resolver,
		files:    store,
		accounts: accountService,
		cleanup:  jobs.NewCleanup(store),
	}, nil
}

func (a *app) close() {
	if err := initializers.CloseDatabase(a.db); err != nil {
		a.lg.Warn("failed to close database", zap.Error(err))
	}
	_ = a.lg.Sync()
}
