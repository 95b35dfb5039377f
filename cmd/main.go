package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetsync/backend/internal/api/handler"
	"meetsync/backend/internal/auth"
	"meetsync/backend/internal/chathub"
	"meetsync/backend/internal/config"
	"meetsync/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if cfg.LogFormat == "json" {
		l = zerolog.New(os.Stdout)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return l.Level(level).With().Timestamp().Caller().Logger()
}

func setupDependencies(cfg *config.Config, l zerolog.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		l.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect Redis")
	}

	l.Info().Msg("database and redis connections established")
	return db, rdb
}

// sweepStaleState закриває всі активні записи учасників і online-множини. Кімнати живуть
// лише в пам'яті, тож до старту хаба і після його зупинки жодна з них не може бути живою.
func sweepStaleState(ctx context.Context, s storage.Storage, l zerolog.Logger) {
	closed, err := s.DeactivateAllParticipants(ctx, time.Now().UTC())
	if err != nil {
		l.Error().Err(err).Msg("failed to close stale participant rows")
	}
	cleared, err := s.ClearOnline(ctx)
	if err != nil {
		l.Error().Err(err).Msg("failed to clear online sets")
	}
	l.Info().Int64("participants", closed).Int64("online_sets", cleared).Msg("stale presence swept")
}

func main() {
	if err := godotenv.Load(); err != nil {
		// .env не обов'язковий, змінні можуть бути вже задані
		bootLog := zerolog.New(os.Stderr)
		bootLog.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	l := newLogger(cfg)
	l.Info().Msg("starting meetsync signaling server")

	db, rdb := setupDependencies(cfg, l)
	s := storage.NewStorageService(db, rdb, cfg.EventChannel, l)
	if err := s.AutoMigrate(); err != nil {
		l.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepStaleState(ctx, s, l)

	hub := chathub.NewManagerService(s, chathub.Options{
		ICEServers:       cfg.ICEServers(),
		MaxMessageLength: cfg.MaxMessageLength,
	}, l)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	h := handler.NewHandler(hub, auth.NewAuthenticator(cfg.JWTSecret, s), s, handler.Options{
		AllowedOrigins: cfg.Origins(),
		Client: chathub.ClientOptions{
			SendBuffer: cfg.SendBufferSize,
			ReadLimit:  cfg.ReadLimit,
		},
	}, l)

	r := gin.Default()
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		l.Info().Str("addr", cfg.HTTPAddr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	stopHub()
	select {
	case <-hubDone:
	case <-shutdownCtx.Done():
	}
	// зʼєднання могли не встигнути прибрати за собою, закриваємо залишки
	sweepStaleState(shutdownCtx, s, l)

	if err := rdb.Close(); err != nil {
		l.Warn().Err(err).Msg("failed to close redis")
	}
	l.Info().Msg("server exited")
}
