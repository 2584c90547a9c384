package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"nowplaying/internal/app"
	"nowplaying/internal/domain"
)

const (
	sessionCookie = "np_sid"
	maxListings   = 8 // per session; the oldest listing loses its pager
)

// listing is what a page scrolls through: a language pair plus an optional
// search query (empty for now playing).
type listing struct {
	pair  domain.LangPair
	query string
}

// feed holds the pagers of one browser session, one per listing, so tabs
// showing different listings scroll independently.
type feed struct {
	mu     sync.Mutex
	pagers *lru.Cache[listing, *app.Pager]
}

func newFeed() *feed {
	c, err := lru.New[listing, *app.Pager](maxListings)
	if err != nil {
		panic(err) // size is a positive constant
	}
	return &feed{pagers: c}
}

// restart rewinds the listing to page 1.
func (f *feed) restart(l listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pagers.Get(l); ok {
		p.Reset()
		return
	}
	f.pagers.Add(l, app.NewPager())
}

// pager returns the listing's pager. A listing the session has not seen
// (new tab, evicted or expired session) resumes after page `after`, the last
// page the client reports showing.
func (f *feed) pager(l listing, after int) *app.Pager {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pagers.Get(l); ok {
		return p
	}
	p := app.NewPagerAt(after)
	f.pagers.Add(l, p)
	return p
}

// Sessions maps the session cookie to its feed. Idle sessions expire.
type Sessions struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, *feed]
	ttl time.Duration
}

func NewSessions(capacity int, ttl time.Duration) *Sessions {
	return &Sessions{lru: expirable.NewLRU[string, *feed](capacity, nil, ttl), ttl: ttl}
}

func (s *Sessions) Len() int { return s.lru.Len() }

// feedFor returns the caller's feed, creating a session when the request has
// none or it has expired. The cookie is reissued on every access so its
// lifetime tracks activity, like the server-side expiry.
func (s *Sessions) feedFor(w http.ResponseWriter, r *http.Request) *feed {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	f, ok := s.lru.Get(id)
	if !ok {
		f = newFeed()
	}
	// re-add to refresh the expiry of an active session
	s.lru.Add(id, f)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return f
}
