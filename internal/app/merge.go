package app

import "nowplaying/internal/domain"

// MergeBilingual joins two language variants of the same listing by movie id.
//
// The primary sequence is authoritative: output has its order and length,
// and duplicate primary ids each yield a record. The secondary sequence is
// lookup only (last write wins on duplicate ids); ids that appear only there
// are dropped. Each text field prefers its own language, then the other one,
// then "".
func MergeBilingual(primary, secondary []domain.MovieRecord, pair domain.LangPair) []domain.Movie {
	out, _ := mergeBilingual(primary, secondary, pair)
	return out
}

// mergeBilingual also reports how many secondary ids had no primary match.
func mergeBilingual(primary, secondary []domain.MovieRecord, pair domain.LangPair) ([]domain.Movie, int) {
	byID := make(map[int64]domain.MovieRecord, len(secondary))
	for _, m := range secondary {
		byID[m.ID] = m
	}

	out := make([]domain.Movie, 0, len(primary))
	used := make(map[int64]struct{}, len(primary))
	for _, p := range primary {
		s, ok := byID[p.ID]
		if ok {
			used[p.ID] = struct{}{}
		}
		out = append(out, domain.Movie{
			ID:          p.ID,
			Title:       firstNonEmpty(p.Title, s.Title),
			Overview:    firstNonEmpty(p.Overview, s.Overview),
			AltTitle:    firstNonEmpty(s.Title, p.Title),
			AltOverview: firstNonEmpty(s.Overview, p.Overview),
			PosterPath:  firstNonEmpty(p.PosterPath, s.PosterPath),
			ReleaseDate: firstNonEmpty(p.ReleaseDate, s.ReleaseDate),
			VoteAverage: firstPositive(p.VoteAverage, s.VoteAverage),
			Lang:        pair.Primary,
			AltLang:     pair.Secondary,
		})
	}
	return out, len(byID) - len(used)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vs ...float64) float64 {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}
