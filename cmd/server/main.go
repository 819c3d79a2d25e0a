package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "go.tasknest.io/auth/api/echo"
	"go.tasknest.io/auth/cache"
	rediscache "go.tasknest.io/auth/cache/redis"
	"go.tasknest.io/auth/clients"
	"go.tasknest.io/auth/config"
	"go.tasknest.io/auth/domain"
	"go.tasknest.io/auth/internal/metrics"
	"go.tasknest.io/auth/memory"
	"go.tasknest.io/auth/mongodb"
	"go.tasknest.io/auth/oauth2"
	"go.tasknest.io/auth/ratelimit"
	"go.tasknest.io/auth/tracing"
)

// repositories groups the storage interfaces the services are wired
// with, so the backend choice stays in one place.
type repositories struct {
	clients domain.ClientRepository
	codes   domain.AuthCodeRepository
	devices domain.DeviceAuthRepository
	tokens  domain.TokenRepository
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)

	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("storage_backend", string(cfg.StorageBackend)).
		Str("issuer_url", cfg.IssuerURL).
		Bool("refresh_token_rotation", cfg.RefreshTokenRotation).
		Msg("Starting authorization server")

	tracerProvider, err := tracing.InitTracerProvider(cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()

	repos, shutdownStorage := initStorage(ctx, cfg)

	tokenCache, closeCache := initTokenCache(cfg)

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	registry := clients.NewRegistry(repos.clients)
	issuer := oauth2.NewTokenIssuer(repos.tokens, tokenCache, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	server := oauth2.NewServer(
		registry,
		oauth2.NewAuthorizationCodeGrant(repos.codes, issuer),
		oauth2.NewRefreshTokenGrant(repos.tokens, issuer, cfg.RefreshTokenRotation),
		oauth2.NewClientCredentialsGrant(registry, issuer),
		oauth2.NewDeviceCodeGrant(repos.devices, issuer),
	)
	flow := oauth2.NewDeviceFlow(registry, repos.devices, cfg.DeviceCodeTTL, int(cfg.DevicePollInterval.Seconds()))
	codes := oauth2.NewAuthCodeIssuer(registry, repos.codes, cfg.AuthCodeTTL)
	limiter := ratelimit.NewKeyedLimiter(cfg.TokenRateLimit, cfg.TokenRateBurst)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	api := echoapi.NewOAuth2API(registry, server, flow, codes, issuer, limiter, cfg.IssuerURL)
	api.RegisterRoutes(e)

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	go runCleanup(cleanupCtx, cfg.CleanupInterval, repos)

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown error")
	}
	closeCache()
	shutdownStorage(shutdownCtx)

	log.Info().Msg("Server stopped")
}

func initLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid log level, defaulting to info")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func initStorage(ctx context.Context, cfg config.Config) (repositories, func(context.Context)) {
	if cfg.StorageBackend == config.StorageTypeMemory {
		log.Warn().Msg("Using in-memory storage, all state is lost on restart")
		store := memory.NewStore()
		return repositories{
			clients: store,
			codes:   store,
			devices: store,
			tokens:  store,
		}, func(context.Context) {}
	}

	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB")
	}
	db := mongodb.GetDB()

	return repositories{
		clients: mongodb.NewClientRepository(db),
		codes:   mongodb.NewAuthCodeRepository(db),
		devices: mongodb.NewDeviceAuthRepository(db),
		tokens:  mongodb.NewTokenRepository(db),
	}, mongodb.CloseMongoDB
}

func initTokenCache(cfg config.Config) (cache.TokenStore, func()) {
	if cfg.RedisAddr == "" {
		store := cache.NewMemoryTokenStore(cfg.AccessTokenTTL)
		return store, store.Close
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Info().Str("redis_addr", cfg.RedisAddr).Msg("Using Redis token cache")

	return rediscache.NewTokenStore(client, cfg.ServiceName), func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis client")
		}
	}
}

// runCleanup periodically deletes expired codes, device authorizations
// and tokens so dead grant state does not accumulate.
func runCleanup(ctx context.Context, interval time.Duration, repos repositories) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repos.codes.DeleteExpiredAuthCodes(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to delete expired authorization codes")
			}
			if err := repos.devices.DeleteExpiredDeviceAuths(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to delete expired device authorizations")
			}
			if err := repos.tokens.DeleteExpiredTokens(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to delete expired tokens")
			}
		}
	}
}
