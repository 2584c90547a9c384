package app

import (
	"strconv"
	"strings"
	"time"

	"nowplaying/internal/domain"
	"nowplaying/internal/shared"
)

// Texts looks up localized strings by language code.
type Texts interface {
	Text(lang, key string, args ...any) string
}

// Posters builds poster URLs.
type Posters struct {
	ImageBase   string // e.g. https://image.tmdb.org/t/p/w500
	Placeholder string
}

func (p Posters) URL(path string) string {
	if path == "" {
		return p.Placeholder
	}
	return strings.TrimRight(p.ImageBase, "/") + "/" + strings.TrimLeft(path, "/")
}

// Card is the display model of one movie tile.
type Card struct {
	ID             int64
	PosterURL      string
	FallbackPoster string
	Title          string
	AltTitle       string
	Overview       string
	AltOverview    string
	Lang           string
	AltLang        string
	Rating         string
	Year           string
	ReleaseDate    string

	// labels of the details block, in the primary language
	DetailsLabel string
	RatingLabel  string
	ReleaseLabel string
}

func NewCard(m domain.Movie, posters Posters, t Texts) Card {
	c := Card{
		ID:             m.ID,
		PosterURL:      posters.URL(m.PosterPath),
		FallbackPoster: posters.Placeholder,
		Title:          firstNonEmpty(m.Title, m.AltTitle),
		AltTitle:       firstNonEmpty(m.AltTitle, m.Title),
		Overview:       firstNonEmpty(m.Overview, m.AltOverview, t.Text(m.Lang, shared.MsgNoOverview)),
		AltOverview:    firstNonEmpty(m.AltOverview, m.Overview, t.Text(m.AltLang, shared.MsgNoOverview)),
		Lang:           m.Lang,
		AltLang:        m.AltLang,
		Rating:         t.Text(m.Lang, shared.MsgNotAvailable),
		Year:           t.Text(m.Lang, shared.MsgReleaseTBA),
		ReleaseDate:    firstNonEmpty(m.ReleaseDate, t.Text(m.Lang, shared.MsgReleaseTBA)),
		DetailsLabel:   t.Text(m.Lang, shared.MsgDetails),
		RatingLabel:    t.Text(m.Lang, shared.MsgRating),
		ReleaseLabel:   t.Text(m.Lang, shared.MsgReleaseDate),
	}
	if m.VoteAverage > 0 {
		c.Rating = strconv.FormatFloat(m.VoteAverage, 'f', 1, 64)
	}
	if y, ok := releaseYear(m.ReleaseDate); ok {
		c.Year = strconv.Itoa(y)
	}
	return c
}

func NewCards(ms []domain.Movie, posters Posters, t Texts) []Card {
	out := make([]Card, 0, len(ms))
	for _, m := range ms {
		out = append(out, NewCard(m, posters, t))
	}
	return out
}

// releaseYear accepts "2006-01-02" or a bare year prefix.
func releaseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d.Year(), true
	}
	if len(s) >= 4 {
		if y, err := strconv.Atoi(s[:4]); err == nil && y > 0 {
			return y, true
		}
	}
	return 0, false
}
