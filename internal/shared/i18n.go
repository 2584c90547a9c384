package shared

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"nowplaying/internal/domain"
)

// Message keys.
const (
	MsgPageTitle     = "page.title"
	MsgSearchHint    = "search.placeholder"
	MsgSearchButton  = "search.button"
	MsgLoading       = "state.loading"
	MsgLoadFailed    = "state.load_failed"
	MsgSearchFailed  = "state.search_failed"
	MsgNoOverview    = "card.no_overview"
	MsgReleaseTBA    = "card.release_tba"
	MsgNotAvailable  = "card.not_available"
	MsgResultsHeader = "search.results_for"
	MsgDetails       = "card.details"
	MsgRating        = "card.rating"
	MsgReleaseDate   = "card.release_date"
)

var texts = map[language.Tag]map[string]string{
	language.Korean: {
		MsgPageTitle:     "현재 상영작",
		MsgSearchHint:    "영화 제목으로 검색",
		MsgSearchButton:  "검색",
		MsgLoading:       "영화를 불러오는 중...",
		MsgLoadFailed:    "영화를 불러오는데 실패했습니다. 다시 시도해주세요.",
		MsgSearchFailed:  "검색 중 오류가 발생했습니다.",
		MsgNoOverview:    "줄거리가 없습니다.",
		MsgReleaseTBA:    "미정",
		MsgNotAvailable:  "N/A",
		MsgResultsHeader: "%q 검색 결과",
		MsgDetails:       "상세 정보",
		MsgRating:        "평점",
		MsgReleaseDate:   "개봉일",
	},
	language.English: {
		MsgPageTitle:     "Now Playing",
		MsgSearchHint:    "Search by movie title",
		MsgSearchButton:  "Search",
		MsgLoading:       "Loading movies...",
		MsgLoadFailed:    "Failed to load movies. Please try again.",
		MsgSearchFailed:  "Something went wrong while searching.",
		MsgNoOverview:    "No overview available.",
		MsgReleaseTBA:    "TBA",
		MsgNotAvailable:  "N/A",
		MsgResultsHeader: "Results for %q",
		MsgDetails:       "Details",
		MsgRating:        "Rating",
		MsgReleaseDate:   "Release date",
	},
}

// Messages renders user-facing strings for a language code such as "ko-KR".
type Messages struct {
	cat       catalog.Catalog
	supported []language.Tag // English first: the fallback
	matcher   language.Matcher
}

func NewMessages() *Messages {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range texts {
		for k, v := range msgs {
			if err := b.SetString(tag, k, v); err != nil {
				panic(err) // static table
			}
		}
	}
	supported := []language.Tag{language.English, language.Korean}
	return &Messages{cat: b, supported: supported, matcher: language.NewMatcher(supported)}
}

func (m *Messages) Printer(lang string) *message.Printer {
	tag := m.supported[0]
	if t, err := language.Parse(lang); err == nil {
		_, idx, _ := m.matcher.Match(t)
		tag = m.supported[idx]
	}
	return message.NewPrinter(tag, message.Catalog(m.cat))
}

func (m *Messages) Text(lang, key string, args ...any) string {
	return m.Printer(lang).Sprintf(key, args...)
}

// Languages picks the display language of a request among the configured pair.
type Languages struct {
	pair    domain.LangPair
	tags    []language.Tag
	matcher language.Matcher
}

func NewLanguages(pair domain.LangPair) *Languages {
	tags := []language.Tag{language.Make(pair.Primary), language.Make(pair.Secondary)}
	return &Languages{pair: pair, tags: tags, matcher: language.NewMatcher(tags)}
}

func (l *Languages) Default() domain.LangPair { return l.pair }

// Supported reports whether lang matches either configured language.
func (l *Languages) Supported(lang string) (domain.LangPair, bool) {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return l.pair, false
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf < language.High {
		return l.pair, false
	}
	return l.pairFor(idx), true
}

// Resolve checks an explicit choice (query param or cookie) first, then
// Accept-Language. The chosen language becomes primary.
func (l *Languages) Resolve(explicit []string, acceptLanguage string) domain.LangPair {
	for _, e := range explicit {
		if e == "" {
			continue
		}
		if p, ok := l.Supported(e); ok {
			return p
		}
	}
	if acceptLanguage = strings.TrimSpace(acceptLanguage); acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			_, idx, conf := l.matcher.Match(tags...)
			if conf != language.No {
				return l.pairFor(idx)
			}
		}
	}
	return l.pair
}

func (l *Languages) pairFor(idx int) domain.LangPair {
	if idx == 1 {
		return l.pair.Swap()
	}
	return l.pair
}
