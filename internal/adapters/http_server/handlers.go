// internal/adapters/http_server/handlers.go
package httpserver

import (
	"bytes"
	"crypto/sha1"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"nowplaying/internal/adapters/observability"
	"nowplaying/internal/app"
	"nowplaying/internal/domain"
	"nowplaying/internal/shared"
)

const (
	langParam  = "lang"
	langCookie = "np_lang"
	maxPage    = 500 // upstream rejects pages above this
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Handlers struct {
	Feed     *app.FeedService
	Langs    *shared.Languages
	Msgs     *shared.Messages
	Posters  app.Posters
	Sessions *Sessions
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type pageData struct {
	Lang, AltLang string
	Title         string
	SearchHint    string
	SearchButton  string
	LoadingText   string
	Query         string
	Heading       string
	View          app.View
	Cards         []app.Card
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/", h.index)
	s.mux.Get("/search", h.search)
	s.mux.Get("/movies/more", h.more)
	s.mux.Get("/v1/movies/now-playing", h.apiNowPlaying)
	s.mux.Get("/v1/movies/search", h.apiSearch)
	s.mux.Get("/v1/diagnostics/failures", h.apiFailures)
}

// pair resolves the display languages of r; an explicit ?lang= is remembered in a cookie.
func (h *Handlers) pair(w http.ResponseWriter, r *http.Request) domain.LangPair {
	p, explicit := h.resolvePair(r)
	if explicit {
		http.SetCookie(w, &http.Cookie{Name: langCookie, Value: p.Primary, Path: "/", MaxAge: 365 * 24 * 3600, SameSite: http.SameSiteLaxMode})
	}
	return p
}

// resolvePair checks ?lang=, then the language cookie, then Accept-Language.
// explicit reports whether a supported ?lang= decided it.
func (h *Handlers) resolvePair(r *http.Request) (p domain.LangPair, explicit bool) {
	if q := strings.TrimSpace(r.URL.Query().Get(langParam)); q != "" {
		if p, ok := h.Langs.Supported(q); ok {
			return p, true
		}
	}
	var cookie string
	if c, err := r.Cookie(langCookie); err == nil {
		cookie = c.Value
	}
	return h.Langs.Resolve([]string{cookie}, r.Header.Get("Accept-Language")), false
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, lang string, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if status == http.StatusOK {
		// If client already has this version, short-circuit.
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	if lang != "" {
		w.Header().Set("Content-Language", lang)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Str("template", name).Msg("failed to write page")
	}
}

func (h *Handlers) page(pair domain.LangPair, query string, v app.View) pageData {
	d := pageData{
		Lang:         pair.Primary,
		AltLang:      pair.Secondary,
		Title:        h.Msgs.Text(pair.Primary, shared.MsgPageTitle),
		SearchHint:   h.Msgs.Text(pair.Primary, shared.MsgSearchHint),
		SearchButton: h.Msgs.Text(pair.Primary, shared.MsgSearchButton),
		LoadingText:  h.Msgs.Text(pair.Primary, shared.MsgLoading),
		Query:        query,
		View:         v,
		Cards:        app.NewCards(v.Movies, h.Posters, h.Msgs),
	}
	if query != "" {
		d.Heading = h.Msgs.Text(pair.Primary, shared.MsgResultsHeader, query)
	}
	return d
}

// index renders the first now-playing page and restarts the session's feed.
func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	pair := h.pair(w, r)
	h.Sessions.feedFor(w, r).restart(listing{pair: pair})

	v := app.Begin()
	movies, err := h.Feed.NowPlaying(r.Context(), pair, 1)
	v = v.Settle(movies, err, h.Msgs.Text(pair.Primary, shared.MsgLoadFailed))
	h.render(w, "page", h.page(pair, "", v))
}

// search renders the first page of results; a blank query is the initial load.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.index(w, r)
		return
	}
	pair := h.pair(w, r)
	h.Sessions.feedFor(w, r).restart(listing{pair: pair, query: query})

	v := app.Begin()
	movies, err := h.Feed.Search(r.Context(), pair, query, 1)
	v = v.Settle(movies, err, h.Msgs.Text(pair.Primary, shared.MsgSearchFailed))
	h.render(w, "page", h.page(pair, query, v))
}

// more renders the next page of the scrolling page's listing (?lang=, ?q=)
// as a card fragment; ?after= is the last page the client shows.
// 204 means nothing to append: a load is already running, or the feed ended
// (X-Feed-End). 502 means the load failed and the page counter was rolled back.
func (h *Handlers) more(w http.ResponseWriter, r *http.Request) {
	// the page's language is not a new preference, so no cookie is written
	pair, _ := h.resolvePair(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	after, err := strconv.Atoi(r.URL.Query().Get("after"))
	if err != nil || after < 1 || after > maxPage {
		after = 1
	}
	pager := h.Sessions.feedFor(w, r).pager(listing{pair: pair, query: query}, after)

	fetch := h.Feed.MoreNowPlaying(pair)
	if query != "" {
		fetch = h.Feed.MoreSearch(pair, query)
	}

	movies, err := pager.LoadMore(r.Context(), fetch)
	switch {
	case errors.Is(err, app.ErrLoadInProgress):
		observability.ObserveLoadMore("busy")
		w.WriteHeader(http.StatusNoContent)
		return
	case app.IsEmpty(err):
		observability.ObserveLoadMore("end")
		w.Header().Set("X-Feed-End", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		observability.ObserveLoadMore("failed")
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	observability.ObserveLoadMore("ok")
	w.Header().Set("X-Feed-Page", strconv.Itoa(pager.Page()))
	h.render(w, "cards", app.NewCards(movies, h.Posters, h.Msgs))
}

func parsePage(r *http.Request) (int, bool) {
	ps := r.URL.Query().Get("page")
	if ps == "" {
		return 1, true
	}
	p, err := strconv.Atoi(ps)
	if err != nil || p < 1 || p > maxPage {
		return 0, false
	}
	return p, true
}

func (h *Handlers) apiNowPlaying(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid page", "page must be an integer between 1 and 500")
		return
	}
	pair := h.pair(w, r)
	v := app.Begin()
	movies, err := h.Feed.NowPlaying(r.Context(), pair, page)
	v = v.Settle(movies, err, h.Msgs.Text(pair.Primary, shared.MsgLoadFailed))
	h.writeView(w, r, pair, v)
}

func (h *Handlers) apiSearch(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid page", "page must be an integer between 1 and 500")
		return
	}
	pair := h.pair(w, r)
	v := app.Begin()
	movies, err := h.Feed.Search(r.Context(), pair, r.URL.Query().Get("q"), page)
	v = v.Settle(movies, err, h.Msgs.Text(pair.Primary, shared.MsgSearchFailed))
	h.writeView(w, r, pair, v)
}

func (h *Handlers) writeView(w http.ResponseWriter, r *http.Request, pair domain.LangPair, v app.View) {
	status := http.StatusOK
	if v.Failed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, pair.Primary, v)
}

func (h *Handlers) apiFailures(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	out, err := h.Feed.Failures(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list failures")
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "failure journal unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, "", map[string]any{"items": out})
}
