package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrEmptyResult  = errors.New("empty result set")
)

type MovieSource interface {
	NowPlaying(ctx context.Context, lang string, page int) (ListPage, error)
	Search(ctx context.Context, lang, query string, page int) (ListPage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// FailureJournal keeps diagnostics for failed fetch operations.
type FailureJournal interface {
	Record(ctx context.Context, f Failure) error
	Recent(ctx context.Context, limit int) ([]Failure, error)
}

type Failure struct {
	ID         int64     `json:"id,omitempty"`
	Op         string    `json:"op"` // now_playing|search|load_more
	Lang       string    `json:"lang"`
	Page       int       `json:"page"`
	Query      string    `json:"query,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Reason     string    `json:"reason"`
	SeenAt     time.Time `json:"seen_at"`
}
