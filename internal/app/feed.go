package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"nowplaying/internal/adapters/observability"
	"nowplaying/internal/domain"
)

const (
	OpNowPlaying = "now_playing"
	OpSearch     = "search"
	OpLoadMore   = "load_more"
)

// FeedService fetches both languages of a listing, merges them and reports failures.
type FeedService struct {
	src      domain.MovieSource
	cache    domain.Cache
	cacheTTL time.Duration
	journal  domain.FailureJournal
}

// NewFeedService wires the feed; cache and journal may be nil.
func NewFeedService(src domain.MovieSource, c domain.Cache, ttl time.Duration, j domain.FailureJournal) *FeedService {
	return &FeedService{src: src, cache: c, cacheTTL: ttl, journal: j}
}

func (s *FeedService) NowPlaying(ctx context.Context, pair domain.LangPair, page int) ([]domain.Movie, error) {
	return s.nowPlaying(ctx, OpNowPlaying, pair, page)
}

// Search falls back to the first now-playing page when query is blank.
func (s *FeedService) Search(ctx context.Context, pair domain.LangPair, query string, page int) ([]domain.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.NowPlaying(ctx, pair, 1)
	}
	return s.search(ctx, OpSearch, pair, query, page)
}

// MoreNowPlaying adapts the feed to a Pager.
func (s *FeedService) MoreNowPlaying(pair domain.LangPair) PageFetcher {
	return func(ctx context.Context, page int) ([]domain.Movie, error) {
		return s.nowPlaying(ctx, OpLoadMore, pair, page)
	}
}

// MoreSearch adapts a search to a Pager; a blank query scrolls now playing.
func (s *FeedService) MoreSearch(pair domain.LangPair, query string) PageFetcher {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.MoreNowPlaying(pair)
	}
	return func(ctx context.Context, page int) ([]domain.Movie, error) {
		return s.search(ctx, OpLoadMore, pair, query, page)
	}
}

func (s *FeedService) search(ctx context.Context, op string, pair domain.LangPair, query string, page int) ([]domain.Movie, error) {
	page = max(page, 1)
	qk := queryKey(query)
	return s.fetchPair(ctx, op, pair, page, query, func(ctx context.Context, lang string) (domain.ListPage, error) {
		key := fmt.Sprintf("tmdb:search:%s:%s:%d", lang, qk, page)
		return s.cached(ctx, key, func() (domain.ListPage, error) {
			return s.src.Search(ctx, lang, query, page)
		})
	})
}

func (s *FeedService) nowPlaying(ctx context.Context, op string, pair domain.LangPair, page int) ([]domain.Movie, error) {
	page = max(page, 1)
	return s.fetchPair(ctx, op, pair, page, "", func(ctx context.Context, lang string) (domain.ListPage, error) {
		key := fmt.Sprintf("tmdb:now_playing:%s:%d", lang, page)
		return s.cached(ctx, key, func() (domain.ListPage, error) {
			return s.src.NowPlaying(ctx, lang, page)
		})
	})
}

type langError struct {
	lang string
	err  error
}

func (e *langError) Error() string { return e.lang + ": " + e.err.Error() }
func (e *langError) Unwrap() error { return e.err }

// fetchPair issues both language requests concurrently and waits for both.
// Either failing fails the operation.
func (s *FeedService) fetchPair(
	ctx context.Context, op string, pair domain.LangPair, page int, query string,
	fetch func(ctx context.Context, lang string) (domain.ListPage, error),
) ([]domain.Movie, error) {
	var prim, sec domain.ListPage
	var g errgroup.Group
	g.Go(func() error {
		lp, err := fetch(ctx, pair.Primary)
		if err != nil {
			return &langError{lang: pair.Primary, err: err}
		}
		prim = lp
		return nil
	})
	g.Go(func() error {
		lp, err := fetch(ctx, pair.Secondary)
		if err != nil {
			return &langError{lang: pair.Secondary, err: err}
		}
		sec = lp
		return nil
	})
	if err := g.Wait(); err != nil {
		err = fmt.Errorf("%s page %d: %w", op, page, err)
		s.fail(ctx, op, pair, page, query, err)
		return nil, err
	}

	movies, dropped := mergeBilingual(prim.Results, sec.Results, pair)
	observability.ObserveMergeDropped(dropped)
	if dropped > 0 {
		log.Debug().Str("op", op).Int("page", page).Int("dropped", dropped).Msg("secondary-only records dropped")
	}
	if len(movies) == 0 {
		err := fmt.Errorf("%s page %d: %w", op, page, domain.ErrEmptyResult)
		s.fail(ctx, op, pair, page, query, err)
		return nil, err
	}
	return movies, nil
}

// cached reads through the cache; cache errors are treated as misses.
func (s *FeedService) cached(ctx context.Context, key string, load func() (domain.ListPage, error)) (domain.ListPage, error) {
	var lp domain.ListPage
	if s.cache != nil {
		ok, err := s.cache.Get(ctx, key, &lp)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if ok {
			return lp, nil
		}
	}
	lp, err := load()
	if err != nil {
		return domain.ListPage{}, err
	}
	// empty pages are not cached so a transient upstream blip does not stick
	if s.cache != nil && len(lp.Results) > 0 {
		if err := s.cache.Set(ctx, key, lp, int(s.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return lp, nil
}

func (s *FeedService) fail(ctx context.Context, op string, pair domain.LangPair, page int, query string, err error) {
	observability.ObserveFailure(op, err)

	f := domain.Failure{
		Op:     op,
		Lang:   pair.Primary,
		Page:   page,
		Query:  query,
		Reason: err.Error(),
		SeenAt: time.Now().UTC(),
	}
	var le *langError
	if errors.As(err, &le) {
		f.Lang = le.lang
	}
	var st interface{ HTTPStatus() int }
	if errors.As(err, &st) {
		f.HTTPStatus = st.HTTPStatus()
	}

	log.Error().Err(err).
		Str("op", op).
		Str("lang", f.Lang).
		Int("page", page).
		Str("query", query).
		Int("http_status", f.HTTPStatus).
		Msg("movie fetch failed")

	if s.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if jerr := s.journal.Record(jctx, f); jerr != nil {
		log.Warn().Err(jerr).Str("op", op).Msg("failure journal write failed")
	}
}

// Failures lists recently journaled failures, newest first.
func (s *FeedService) Failures(ctx context.Context, limit int) ([]domain.Failure, error) {
	if s.journal == nil {
		return []domain.Failure{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

func queryKey(q string) string {
	sum := sha1.Sum([]byte(strings.ToLower(q)))
	return hex.EncodeToString(sum[:8])
}
