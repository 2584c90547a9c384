package app

import (
	"context"
	"errors"
	"sync"

	"nowplaying/internal/domain"
)

// ErrLoadInProgress is returned by LoadMore while another load is pending.
var ErrLoadInProgress = errors.New("load already in progress")

// PageFetcher loads one page of merged movies.
type PageFetcher func(ctx context.Context, page int) ([]domain.Movie, error)

// Pager is the request controller of one infinite-scroll feed.
// It owns the page counter and the in-flight flag; at most one load runs at a time.
type Pager struct {
	mu       sync.Mutex
	page     int
	inFlight bool
}

func NewPager() *Pager { return &Pager{page: 1} }

// NewPagerAt starts a pager that has already shown pages 1..page.
func NewPagerAt(page int) *Pager { return &Pager{page: max(page, 1)} }

// Page is the page of the most recent load, rolled back on failure.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Reset rewinds the feed to page 1. A pending load keeps its own page number.
func (p *Pager) Reset() {
	p.mu.Lock()
	p.page = 1
	p.mu.Unlock()
}

// LoadMore fetches the page after the current one. The flag is set and the
// counter advanced under one lock, and the flag is cleared however fetch ends.
// On failure the counter goes back to its pre-attempt value.
func (p *Pager) LoadMore(ctx context.Context, fetch PageFetcher) ([]domain.Movie, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	p.inFlight = true
	prev := p.page
	p.page++
	next := p.page
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	movies, err := fetch(ctx, next)
	if err != nil {
		p.mu.Lock()
		// a Reset during the load already moved the counter; leave it
		if p.page == next {
			p.page = prev
		}
		p.mu.Unlock()
		return nil, err
	}
	return movies, nil
}
