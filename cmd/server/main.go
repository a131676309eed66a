// @title                       pairchat API
// @version                     1.0
// @description                 Two-person chat with passkey-gated registration, bearer tokens and realtime delivery.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pairchat/pairchat/internal/api"
	"github.com/pairchat/pairchat/internal/api/handler"
	"github.com/pairchat/pairchat/internal/core/ports"
	"github.com/pairchat/pairchat/internal/core/service"
	"github.com/pairchat/pairchat/internal/infrastructure/config"
	"github.com/pairchat/pairchat/internal/infrastructure/db/mongo"
	"github.com/pairchat/pairchat/internal/infrastructure/db/redis"
	"github.com/pairchat/pairchat/internal/infrastructure/realtime"
	"github.com/pairchat/pairchat/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init(logger.Options{Pretty: true})
		logger.Get().Fatal().Err(err).Msg("load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "pairchat",
	})

	// --- MongoDB ---
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongodb")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	users := mongo.NewUserRepository(db)
	passkeys := mongo.NewPasskeyRepository(db)
	messages := mongo.NewMessageRepository(db)
	if err := mongo.EnsureIndexes(ctx, users, passkeys, messages); err != nil {
		log.Fatal().Err(err).Msg("create indexes")
	}

	checks := []handler.DependencyCheck{handler.MongoCheck(db)}

	// --- Redis (optional) ---
	var rdb *goredis.Client
	redisCfg := redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB}
	if redisCfg.Enabled() {
		rdb, err = redis.Connect(ctx, redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer rdb.Close()
		checks = append(checks, handler.RedisCheck(rdb))
	}

	// --- Realtime ---
	hub := realtime.NewHub(logger.Component("realtime"))
	dispatcher := realtime.NewDispatcher(cfg.Realtime.Workers, hub, logger.Component("dispatcher"))
	dispatcher.Start(ctx)

	var publisher ports.EventPublisher = dispatcher
	if rdb != nil {
		bus := redis.NewEventBus(rdb, logger.Component("eventbus"))
		go bus.Run(ctx, dispatcher)
		publisher = bus
	}

	// --- Services ---
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := service.NewAuthService(users, passkeys, tokens, logger.Component("auth"))
	if cfg.Auth.TokenRevocation {
		authSvc.WithRevoker(redis.NewTokenRevoker(rdb))
	}
	msgSvc := service.NewMessageService(messages, users, publisher, logger.Component("messages"))

	e := api.NewRouter(api.Deps{
		Auth:           authSvc,
		Messages:       msgSvc,
		Hub:            hub,
		Checks:         checks,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("redis", rdb != nil).Msg("server listening")
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stop()

	log.Info().Msg("shutdown complete")
}
