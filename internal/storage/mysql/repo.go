package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	"nowplaying/internal/domain"
)

// column widths of fetch_failures, in characters
const (
	maxOp     = 32
	maxLang   = 16
	maxQuery  = 255
	maxReason = 1024
)

// clip cuts s to at most n characters without splitting a rune.
// Invalid UTF-8 is replaced, since utf8mb4 columns reject it.
func clip(s string, n int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valStatus(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// Journal stores failed fetch diagnostics in fetch_failures.
type Journal struct{ db *sql.DB }

func New(db *sql.DB) *Journal { return &Journal{db: db} }

func (j *Journal) Record(ctx context.Context, f domain.Failure) error {
	seen := f.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}
	_, err := j.db.ExecContext(ctx, insertFailureSQL,
		clip(f.Op, maxOp),
		clip(f.Lang, maxLang),
		f.Page,
		valStr(clip(f.Query, maxQuery)),
		valStatus(f.HTTPStatus),
		clip(f.Reason, maxReason),
		seen.UTC(),
	)
	return err
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, recentFailuresSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Failure{}
	for rows.Next() {
		var f domain.Failure
		var query sql.NullString
		var status sql.NullInt64
		if err := rows.Scan(&f.ID, &f.Op, &f.Lang, &f.Page, &query, &status, &f.Reason, &f.SeenAt); err != nil {
			return nil, err
		}
		if query.Valid {
			f.Query = query.String
		}
		if status.Valid {
			f.HTTPStatus = int(status.Int64)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes entries older than cutoff and reports how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, pruneFailuresSQL, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
