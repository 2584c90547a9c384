package app

import (
	"errors"

	"nowplaying/internal/domain"
)

type ViewState string

const (
	StateLoading ViewState = "loading"
	StateError   ViewState = "error"
	StateContent ViewState = "content"
)

// View is what the movie grid shows; exactly one state at a time.
type View struct {
	State   ViewState      `json:"state"`
	Message string         `json:"message,omitempty"`
	Movies  []domain.Movie `json:"movies,omitempty"`
}

// Begin starts a fetch from any state.
func Begin() View { return View{State: StateLoading} }

// Settle leaves Loading: Content when movies is non-empty and err is nil,
// otherwise Error carrying failMsg. Settling a non-loading view is a no-op.
func (v View) Settle(movies []domain.Movie, err error, failMsg string) View {
	if v.State != StateLoading {
		return v
	}
	if err == nil && len(movies) == 0 {
		err = domain.ErrEmptyResult
	}
	if err != nil {
		return View{State: StateError, Message: failMsg}
	}
	return View{State: StateContent, Movies: movies}
}

func (v View) Loading() bool { return v.State == StateLoading }
func (v View) Failed() bool  { return v.State == StateError }
func (v View) Ready() bool   { return v.State == StateContent }

// IsEmpty reports whether err came from an empty result set.
func IsEmpty(err error) bool { return errors.Is(err, domain.ErrEmptyResult) }
