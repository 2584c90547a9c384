package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"nowplaying/internal/adapters/observability"
	redisad "nowplaying/internal/adapters/redis"
	"nowplaying/internal/adapters/tmdb"
	"nowplaying/internal/app"
	"nowplaying/internal/domain"
	"nowplaying/internal/shared"
	mysqlrepo "nowplaying/internal/storage/mysql"
)

// warmer fills the cache with the first WARM_PAGES now-playing pages in both
// languages and prunes old entries from the failure journal.
func main() {
	ctx := context.Background()
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("base", cfg.TMDBBase).
		Int("workers", cfg.WarmWorkers).
		Int("pages", cfg.WarmPages).
		Msg("warmer starting")

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	var journal *mysqlrepo.Journal
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("db ping ok")
		journal = mysqlrepo.New(db)
	}

	// the warmer runs unattended, so it may retry where the API does not
	client, err := tmdb.New(cfg.TMDBBase, cfg.TMDBKey, cfg.TMDBRPS,
		tmdb.WithAttempts(max(cfg.TMDBMaxAttempts, 3)),
		tmdb.WithTimeout(cfg.TMDBTimeout),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize TMDB client")
	}

	var j domain.FailureJournal
	if journal != nil {
		j = journal
	}
	feed := app.NewFeedService(client, cache, cfg.CacheTTL, j)

	workers := max(cfg.WarmWorkers, 1)
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var failed atomic.Int32

	for page := 1; page <= cfg.WarmPages; page++ {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			defer sem.Release(1)

			movies, err := feed.NowPlaying(ctx, cfg.Langs(), page)
			if err != nil {
				failed.Add(1)
				log.Warn().Int("page", page).Err(err).Msg("warm failed")
				return
			}
			log.Info().Int("page", page).Int("movies", len(movies)).Msg("warm ok")
		}(page)
	}
	wg.Wait()

	if journal != nil && cfg.JournalRetention > 0 {
		n, err := journal.Prune(ctx, time.Now().Add(-cfg.JournalRetention))
		if err != nil {
			log.Warn().Err(err).Msg("journal prune failed")
		} else {
			log.Info().Int64("rows", n).Dur("retention", cfg.JournalRetention).Msg("journal pruned")
		}
	}

	log.Info().Int32("failed_pages", failed.Load()).Msg("warming completed")
}
