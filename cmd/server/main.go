package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-chatrooms/internal/api"
	"github.com/npezzotti/go-chatrooms/internal/auth"
	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/config"
	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/server"
	"github.com/npezzotti/go-chatrooms/internal/stats"
	"github.com/rs/zerolog"
)

var configFile string

func main() {
	flag.StringVar(&configFile, "config", "", "path to an optional YAML config file")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "go-chatrooms").Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatal().Err(err).Msg("load .env")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("invalid log level")
	}
	logger = logger.Level(level)

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()

	if cfg.Migrate {
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("db migrate")
		}
		logger.Info().Msg("database migrations applied")
	}

	var revocations auth.RevocationStore
	if cfg.RedisAddr != "" {
		store, err := auth.NewRedisRevocationStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connect")
		}
		defer store.Close()
		revocations = store
	} else {
		logger.Warn().Msg("no redis address configured, logout will not revoke tokens")
	}
	tokens := auth.NewJWTManager(cfg.SigningKey, revocations)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	notifier := chat.NewNotifier(logger, dbConn)
	go notifier.Run()

	router := server.NewRouter(logger, statsUpdater)
	svc := chat.NewService(logger, dbConn, router, notifier)
	hub := server.NewHub(logger, tokens, svc, router, statsUpdater)

	srv := api.NewChatApp(logger, mux, dbConn, svc, hub, tokens, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server")
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}

	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("hub shutdown")
	}

	if err := router.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("router shutdown")
	}

	notifier.Stop()

	logger.Info().Msg("shutdown complete")
}
