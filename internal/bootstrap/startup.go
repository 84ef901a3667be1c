package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/config"
	"github.com/DionathaGoulart/pets-auth/internal/db"
	"github.com/DionathaGoulart/pets-auth/internal/jwt"
)

// MigrateDatabase applies schema migrations before the server starts.
func MigrateDatabase(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			if logger != nil {
				logger.Info("database migrations applied")
			}
			return nil
		},
	})
}

// EnsureSigningKey provisions the JWT signing key at startup so the first
// login does not race its creation.
func EnsureSigningKey(lc fx.Lifecycle, keys *jwt.KeyManager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			key, err := keys.EnsureSigningKey(ctx)
			if err != nil {
				return err
			}
			if logger != nil {
				logger.Info("signing key ready", zap.String("kid", key.KID))
			}
			return nil
		},
	})
}
