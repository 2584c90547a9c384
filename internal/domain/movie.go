package domain

// MovieRecord is one movie as returned by the metadata API for a single language.
// Nullable fields decode to their zero value.
type MovieRecord struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
}

// ListPage is the paged envelope of now_playing and search/movie.
type ListPage struct {
	Page         int           `json:"page"`
	Results      []MovieRecord `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// Movie is a merged record carrying both language variants.
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`        // primary language
	Overview    string  `json:"overview"`     // primary language
	AltTitle    string  `json:"alt_title"`    // secondary language
	AltOverview string  `json:"alt_overview"` // secondary language
	PosterPath  string  `json:"poster_path,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
	Lang        string  `json:"lang"`
	AltLang     string  `json:"alt_lang"`
}

// LangPair names the display language and its complement for one fetch.
type LangPair struct {
	Primary   string
	Secondary string
}

func (p LangPair) Swap() LangPair { return LangPair{Primary: p.Secondary, Secondary: p.Primary} }
