package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pairchat/backend/internal/api/handler"
	"pairchat/backend/internal/archive"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/identity"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/queue"
	"pairchat/backend/internal/realtime"
)

func setupRedis(cfg *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}
	return rdb
}

// setupArchive connects Postgres and runs migrations. Returns a no-op
// recorder when no database is configured.
func setupArchive(cfg *config.Config) archive.Recorder {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("no database configured, archive disabled")
		return archive.NopRecorder{}
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	if err := db.AutoMigrate(&models.RoomRecord{}, &models.MessageRecord{}); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	return archive.NewService(db)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Msg("starting pairchat backend")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	rdb := setupRedis(cfg)
	recorder := setupArchive(cfg)

	store := realtime.NewRedisStore(rdb)
	q := queue.NewManager(store)
	hub := chathub.NewManager()
	op := chathub.NewOperator(q, store, recorder, hub)
	tokens := identity.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)

	r := gin.Default()
	h := handler.NewHandler(hub, op, tokens)

	r.GET("/anonid", h.GetAnonID)  // JWT for a fresh anonymous identity
	r.GET("/ws", h.ServeWebSocket) // WebSocket upgrade

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	var g errgroup.Group
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		return server.ListenAndServe()
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
