//go:build integration || !unit

package integration

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alicebob/miniredis/v2"

	server "nowplaying/internal/adapters/http_server"
	redisad "nowplaying/internal/adapters/redis"
	"nowplaying/internal/adapters/tmdb"
	"nowplaying/internal/app"
	"nowplaying/internal/domain"
	"nowplaying/internal/shared"
)

// ---------- fake TMDB ----------

type fakeTMDB struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeTMDB) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		q := r.URL.Query()
		if q.Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		page, _ := strconv.Atoi(q.Get("page"))
		lang := q.Get("language")

		var results []map[string]any
		switch r.URL.Path {
		case "/movie/now_playing":
			if page <= 2 {
				results = []map[string]any{
					movie(int64(page*10+1), lang, "기생충", "Parasite", "/parasite.jpg", "2019-05-30", 8.5),
					// no poster, no date, unrated
					movie(int64(page*10+2), lang, "", "Untitled", "", "", 0),
				}
			}
		case "/search/movie":
			if q.Get("query") == "parasite" && page == 1 {
				results = []map[string]any{movie(11, lang, "기생충", "Parasite", "/parasite.jpg", "2019-05-30", 8.5)}
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"page": page, "results": results, "total_pages": 2, "total_results": 4,
		}); err != nil {
			t.Errorf("encode: %v", err)
		}
	})
}

func movie(id int64, lang, ko, en, poster, date string, vote float64) map[string]any {
	title := en
	if strings.HasPrefix(lang, "ko") {
		title = ko
	}
	m := map[string]any{
		"id": id, "title": title, "overview": "", "release_date": date, "vote_average": vote,
		"poster_path": nil,
	}
	if poster != "" {
		m["poster_path"] = poster
	}
	return m
}

// ---------- wiring ----------

type stack struct {
	api   *httptest.Server
	tmdb  *fakeTMDB
	redis *miniredis.Miniredis
}

func startStack(t *testing.T) *stack {
	t.Helper()
	ft := &fakeTMDB{}
	upstream := httptest.NewServer(ft.handler(t))
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	client, err := tmdb.New(upstream.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("tmdb.New: %v", err)
	}

	pair := domain.LangPair{Primary: "ko-KR", Secondary: "en-US"}
	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{
		Feed:     app.NewFeedService(client, cache, time.Minute, nil),
		Langs:    shared.NewLanguages(pair),
		Msgs:     shared.NewMessages(),
		Posters:  app.Posters{ImageBase: "https://image.tmdb.org/t/p/w500", Placeholder: "https://via.placeholder.com/500x750"},
		Sessions: server.NewSessions(16, time.Minute),
	})
	api := httptest.NewServer(srv.Mux())
	t.Cleanup(api.Close)

	return &stack{api: api, tmdb: ft, redis: mr}
}

func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func fetchDoc(t *testing.T, c *http.Client, url string) (*http.Response, *goquery.Document) {
	t.Helper()
	res, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return res, doc
}

// ---------- tests ----------

func TestE2E_BrowseScrollAndCache(t *testing.T) {
	s := startStack(t)
	c := browser(t)

	res, doc := fetchDoc(t, c, s.api.URL+"/")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", res.StatusCode)
	}
	cards := doc.Find(".movie-card")
	if cards.Length() != 2 {
		t.Fatalf("cards=%d", cards.Length())
	}
	if got := s.tmdb.calls.Load(); got != 2 {
		t.Fatalf("expected one call per language, got %d", got)
	}

	first := cards.Eq(0)
	if got := strings.TrimSpace(first.Find(".title-primary").Text()); got != "기생충" {
		t.Fatalf("primary=%q", got)
	}
	if got := strings.TrimSpace(first.Find(".title-secondary").Text()); got != "Parasite" {
		t.Fatalf("secondary=%q", got)
	}
	if got := first.Find(".rating-value").Text(); got != "8.5" {
		t.Fatalf("rating=%q", got)
	}

	// missing Korean title falls back to English; missing fields get placeholders
	second := cards.Eq(1)
	if got := strings.TrimSpace(second.Find(".title-primary").Text()); got != "Untitled" {
		t.Fatalf("fallback title=%q", got)
	}
	if got := strings.TrimSpace(second.Find(".overview-primary").Text()); got != "줄거리가 없습니다." {
		t.Fatalf("ko overview placeholder=%q", got)
	}
	if got := strings.TrimSpace(second.Find(".overview-secondary").Text()); got != "No overview available." {
		t.Fatalf("en overview placeholder=%q", got)
	}
	if got := second.Find(".rating-value").Text(); got != "N/A" {
		t.Fatalf("rating=%q", got)
	}
	if src, _ := second.Find("img").Attr("src"); src != "https://via.placeholder.com/500x750" {
		t.Fatalf("poster=%q", src)
	}

	// both language pages are cached under their own keys
	for _, k := range []string{"np:tmdb:now_playing:ko-KR:1", "np:tmdb:now_playing:en-US:1"} {
		if !s.redis.Exists(k) {
			t.Fatalf("missing cache key %s (have %v)", k, s.redis.Keys())
		}
	}
	fetchDoc(t, c, s.api.URL+"/")
	if got := s.tmdb.calls.Load(); got != 2 {
		t.Fatalf("reload must be served from cache, calls=%d", got)
	}

	// scroll: page 2, then the end of the feed
	res, doc = fetchDoc(t, c, s.api.URL+"/movies/more")
	if res.StatusCode != http.StatusOK || doc.Find(".movie-card").Length() != 2 {
		t.Fatalf("page 2 status=%d cards=%d", res.StatusCode, doc.Find(".movie-card").Length())
	}
	res, _ = fetchDoc(t, c, s.api.URL+"/movies/more")
	if res.StatusCode != http.StatusNoContent || res.Header.Get("X-Feed-End") == "" {
		t.Fatalf("page 3 status=%d end=%q", res.StatusCode, res.Header.Get("X-Feed-End"))
	}
}

func TestE2E_UpstreamFailure(t *testing.T) {
	s := startStack(t)
	s.tmdb.fail.Store(true)

	_, doc := fetchDoc(t, browser(t), s.api.URL+"/?lang=en-US")
	if _, hidden := doc.Find("#error").Attr("hidden"); hidden {
		t.Fatal("error box must be visible")
	}
	if got := strings.TrimSpace(doc.Find("#error").Text()); got != "Failed to load movies. Please try again." {
		t.Fatalf("message=%q", got)
	}
	if len(s.redis.Keys()) != 0 {
		t.Fatalf("failures must not be cached: %v", s.redis.Keys())
	}

	res, err := http.Get(s.api.URL + "/v1/movies/now-playing")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("api status=%d", res.StatusCode)
	}
}

func TestE2E_Search(t *testing.T) {
	s := startStack(t)

	res, err := http.Get(s.api.URL + "/v1/movies/search?q=parasite")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var v app.View
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.State != app.StateContent || len(v.Movies) != 1 || v.Movies[0].AltTitle != "Parasite" {
		t.Fatalf("view=%+v", v)
	}

	_, doc := fetchDoc(t, browser(t), s.api.URL+"/search?q=nothing")
	if _, hidden := doc.Find("#error").Attr("hidden"); hidden {
		t.Fatal("an empty search shows the error state")
	}
	if got := strings.TrimSpace(doc.Find("#error").Text()); got != "검색 중 오류가 발생했습니다." {
		t.Fatalf("message=%q", got)
	}
}
