package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/DionathaGoulart/pets-auth/internal/adapter/cache"
	"github.com/DionathaGoulart/pets-auth/internal/adapter/google"
	"github.com/DionathaGoulart/pets-auth/internal/bootstrap"
	"github.com/DionathaGoulart/pets-auth/internal/config"
	httptransport "github.com/DionathaGoulart/pets-auth/internal/http"
	"github.com/DionathaGoulart/pets-auth/internal/http/handler"
	httpmiddleware "github.com/DionathaGoulart/pets-auth/internal/http/middleware"
	"github.com/DionathaGoulart/pets-auth/internal/jwt"
	apimiddleware "github.com/DionathaGoulart/pets-auth/internal/middleware"
	"github.com/DionathaGoulart/pets-auth/internal/repository"
	"github.com/DionathaGoulart/pets-auth/internal/server"
	"github.com/DionathaGoulart/pets-auth/internal/service"
	authservice "github.com/DionathaGoulart/pets-auth/internal/service/auth"
	"github.com/DionathaGoulart/pets-auth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newTxRunner,
			newUserRepository,
			newTokenRepository,
			newKeyRepository,
			newRedisClient,
			newCodeGuard,
			newGoogleClient,
			newRateLimiter,
			newKeyManager,
			newTokenGenerator,
			service.NewAuthService,
			newReconciler,
			newGoogleService,
			newAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.MigrateDatabase, bootstrap.EnsureSigningKey, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTxRunner(pool *pgxpool.Pool) repository.TxRunner {
	return repository.NewPgxTxRunner(pool)
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newTokenRepository(pool *pgxpool.Pool) repository.TokenRepository {
	return repository.NewPostgresTokenRepo(pool)
}

func newKeyRepository(pool *pgxpool.Pool) repository.KeyRepository {
	return repository.NewPostgresKeyRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newCodeGuard(client redis.UniversalClient) repository.CodeGuard {
	return cacheadapter.NewRedisCodeGuard(client)
}

func newGoogleClient(cfg config.Config) google.Client {
	return google.NewHTTPClient(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
		UserInfoURL:  cfg.GoogleUserInfoURL,
		Timeout:      cfg.ProviderTimeout,
	}, &http.Client{Timeout: cfg.ProviderTimeout})
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newKeyManager(repo repository.KeyRepository, node *snowflake.Node) *jwt.KeyManager {
	return jwt.NewKeyManager(repo, node)
}

func newTokenGenerator(manager *jwt.KeyManager, cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator(manager, cfg.AccessTokenTTL)
}

func newReconciler(tx repository.TxRunner, node *snowflake.Node, logger *zap.Logger) *authservice.Reconciler {
	return authservice.NewReconciler(tx, node, logger)
}

func newGoogleService(client google.Client, codes repository.CodeGuard, reconciler *authservice.Reconciler, auth *service.AuthService, logger *zap.Logger) authservice.GoogleService {
	return authservice.NewGoogleService(client, codes, reconciler, auth, logger)
}

func newAuthHandler(auth *service.AuthService, googleSvc authservice.GoogleService, cfg config.Config, logger *zap.Logger) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, googleSvc, cfg, logger)
}

func newAuthMiddleware(tokens *jwt.Generator, cfg config.Config) *httpmiddleware.Auth {
	return httpmiddleware.NewAuth(tokens, cfg.Issuer)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
