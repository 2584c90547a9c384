package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nowplaying/internal/app"
	"nowplaying/internal/domain"
)

// ---- fakes ----

type call struct {
	op, lang, query string
	page            int
}

type fakeSource struct {
	mu    sync.Mutex
	calls []call
	pages map[string]domain.ListPage // key: lang
	errs  map[string]error           // key: lang
}

func (f *fakeSource) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeSource) NowPlaying(ctx context.Context, lang string, page int) (domain.ListPage, error) {
	f.record(call{op: "now_playing", lang: lang, page: page})
	if err := f.errs[lang]; err != nil {
		return domain.ListPage{}, err
	}
	return f.pages[lang], nil
}

func (f *fakeSource) Search(ctx context.Context, lang, query string, page int) (domain.ListPage, error) {
	f.record(call{op: "search", lang: lang, query: query, page: page})
	if err := f.errs[lang]; err != nil {
		return domain.ListPage{}, err
	}
	return f.pages[lang], nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	c.store[key] = b
	return err
}

func (c *fakeCache) Del(ctx context.Context, key string) error { return nil }

type fakeJournal struct {
	mu  sync.Mutex
	got []domain.Failure
}

func (j *fakeJournal) Record(ctx context.Context, f domain.Failure) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.got = append(j.got, f)
	return nil
}

func (j *fakeJournal) Recent(ctx context.Context, limit int) ([]domain.Failure, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.Failure(nil), j.got...), nil
}

type httpStatusErr int

func (e httpStatusErr) Error() string   { return fmt.Sprintf("bad status %d", int(e)) }
func (e httpStatusErr) HTTPStatus() int { return int(e) }

func bilingualSource() *fakeSource {
	return &fakeSource{pages: map[string]domain.ListPage{
		"ko-KR": {Page: 1, Results: []domain.MovieRecord{{ID: 1, Title: "가"}, {ID: 2, Title: "나"}}},
		"en-US": {Page: 1, Results: []domain.MovieRecord{{ID: 2, Title: "B"}, {ID: 1, Title: "A"}, {ID: 3, Title: "C"}}},
	}}
}

// ---- tests ----

func TestFeed_NowPlaying_MergesBothLanguages(t *testing.T) {
	src := bilingualSource()
	svc := app.NewFeedService(src, nil, time.Minute, nil)

	got, err := svc.NowPlaying(context.Background(), koEn, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 2 || got[0].AltTitle != "A" || got[1].AltTitle != "B" {
		t.Fatalf("unexpected merge: %+v", got)
	}
	if src.count() != 2 {
		t.Fatalf("expected exactly one request pair, got %d calls", src.count())
	}
}

func TestFeed_SwappedPairUsesEnglishOrder(t *testing.T) {
	svc := app.NewFeedService(bilingualSource(), nil, time.Minute, nil)

	got, err := svc.NowPlaying(context.Background(), koEn.Swap(), 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 3 || got[0].Title != "B" || got[0].AltTitle != "나" || got[2].AltTitle != "C" {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestFeed_CacheHitSkipsUpstream(t *testing.T) {
	src := bilingualSource()
	svc := app.NewFeedService(src, &fakeCache{}, time.Minute, nil)

	if _, err := svc.NowPlaying(context.Background(), koEn, 1); err != nil {
		t.Fatalf("err: %v", err)
	}
	src.pages["ko-KR"] = domain.ListPage{Results: []domain.MovieRecord{{ID: 99, Title: "SHOULD NOT SEE"}}}

	got, err := svc.NowPlaying(context.Background(), koEn, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got[0].Title != "가" {
		t.Fatalf("expected cached page, got %+v", got[0])
	}
	if src.count() != 2 {
		t.Fatalf("expected upstream to be hit once per language, got %d", src.count())
	}
}

func TestFeed_OneSideFailureFailsAndJournals(t *testing.T) {
	src := bilingualSource()
	src.errs = map[string]error{"en-US": httpStatusErr(503)}
	j := &fakeJournal{}
	svc := app.NewFeedService(src, nil, time.Minute, j)

	_, err := svc.NowPlaying(context.Background(), koEn, 4)
	var st interface{ HTTPStatus() int }
	if !errors.As(err, &st) || st.HTTPStatus() != 503 {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
	if src.count() != 2 {
		t.Fatalf("both requests must be issued and awaited, got %d", src.count())
	}

	fs, _ := svc.Failures(context.Background(), 10)
	if len(fs) != 1 {
		t.Fatalf("expected one journaled failure, got %d", len(fs))
	}
	f := fs[0]
	if f.Op != app.OpNowPlaying || f.Lang != "en-US" || f.Page != 4 || f.HTTPStatus != 503 {
		t.Fatalf("unexpected failure record: %+v", f)
	}
}

func TestFeed_EmptyResult(t *testing.T) {
	src := &fakeSource{pages: map[string]domain.ListPage{}}
	j := &fakeJournal{}
	svc := app.NewFeedService(src, nil, time.Minute, j)

	_, err := svc.Search(context.Background(), koEn, "zzzz", 1)
	if !errors.Is(err, domain.ErrEmptyResult) || !app.IsEmpty(err) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if len(j.got) != 1 || j.got[0].Query != "zzzz" || j.got[0].Op != app.OpSearch {
		t.Fatalf("unexpected journal: %+v", j.got)
	}
}

func TestFeed_BlankSearchIsInitialLoad(t *testing.T) {
	src := bilingualSource()
	svc := app.NewFeedService(src, nil, time.Minute, nil)

	got, err := svc.Search(context.Background(), koEn, "   ", 3)
	if err != nil || len(got) != 2 {
		t.Fatalf("unexpected: %v %+v", err, got)
	}
	for _, c := range src.calls {
		if c.op != "now_playing" || c.page != 1 {
			t.Fatalf("expected now_playing page 1, got %+v", c)
		}
	}
}

func TestFeed_PagerIntegration_RollbackOnFailure(t *testing.T) {
	src := bilingualSource()
	svc := app.NewFeedService(src, nil, time.Minute, nil)
	p := app.NewPager()

	if _, err := p.LoadMore(context.Background(), svc.MoreNowPlaying(koEn)); err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.Page() != 2 {
		t.Fatalf("page = %d", p.Page())
	}

	src.errs = map[string]error{"ko-KR": errors.New("connection reset")}
	if _, err := p.LoadMore(context.Background(), svc.MoreNowPlaying(koEn)); err == nil {
		t.Fatalf("expected failure")
	}
	if p.Page() != 2 {
		t.Fatalf("page after failure = %d, want 2", p.Page())
	}
	last := src.calls[len(src.calls)-1]
	if last.page != 3 {
		t.Fatalf("failed attempt should have asked page 3, got %d", last.page)
	}
}

func TestFeed_MoreSearchFailureJournaledAsLoadMore(t *testing.T) {
	src := bilingualSource()
	src.errs = map[string]error{"ko-KR": httpStatusErr(500)}
	j := &fakeJournal{}
	svc := app.NewFeedService(src, nil, time.Minute, j)

	if _, err := svc.MoreSearch(koEn, "heat")(context.Background(), 3); err == nil {
		t.Fatal("expected failure")
	}
	last := src.calls[len(src.calls)-1]
	if last.op != "search" || last.query != "heat" || last.page != 3 {
		t.Fatalf("unexpected upstream call: %+v", last)
	}
	if len(j.got) != 1 || j.got[0].Op != app.OpLoadMore || j.got[0].Query != "heat" || j.got[0].Page != 3 {
		t.Fatalf("unexpected journal: %+v", j.got)
	}
}

func TestFeed_MoreSearchBlankQueryScrollsNowPlaying(t *testing.T) {
	src := bilingualSource()
	svc := app.NewFeedService(src, nil, time.Minute, nil)

	if _, err := svc.MoreSearch(koEn, "  ")(context.Background(), 2); err != nil {
		t.Fatalf("err: %v", err)
	}
	for _, c := range src.calls {
		if c.op != "now_playing" || c.page != 2 {
			t.Fatalf("expected now_playing page 2, got %+v", c)
		}
	}
}
