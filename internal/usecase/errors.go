package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrBusy                  = errors.New("refresh already in progress")
	ErrResolution            = errors.New("game set resolution failed")
	ErrConfigMissing         = errors.New("required configuration missing")
	ErrFetchFailure          = errors.New("upstream fetch failed")
	ErrScheduleDrift         = errors.New("play schema drifted beyond safe interpretation")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
