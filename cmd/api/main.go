package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "nowplaying/internal/adapters/http_server"
	"nowplaying/internal/adapters/observability"
	redisad "nowplaying/internal/adapters/redis"
	"nowplaying/internal/adapters/tmdb"
	"nowplaying/internal/app"
	"nowplaying/internal/domain"
	"nowplaying/internal/shared"
	mysqlrepo "nowplaying/internal/storage/mysql"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, observability.MetricsHandler(reg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := tmdb.New(cfg.TMDBBase, cfg.TMDBKey, cfg.TMDBRPS,
		tmdb.WithAttempts(cfg.TMDBMaxAttempts),
		tmdb.WithTimeout(cfg.TMDBTimeout),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize TMDB client")
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		// reads fall through to TMDB while redis is away
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, serving uncached")
	}

	var journal domain.FailureJournal
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("failure journal connected")
		journal = mysqlrepo.New(db)
	}

	pair := cfg.Langs()
	feed := app.NewFeedService(client, cache, cfg.CacheTTL, journal)

	// http
	srv := server.New(cfg.TMDBTimeout + 5*time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Feed:     feed,
		Langs:    shared.NewLanguages(pair),
		Msgs:     shared.NewMessages(),
		Posters:  app.Posters{ImageBase: cfg.TMDBImageBase, Placeholder: cfg.PlaceholderURL},
		Sessions: server.NewSessions(cfg.SessionCapacity, cfg.SessionTTL),
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("primary", pair.Primary).
		Str("secondary", pair.Secondary).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
