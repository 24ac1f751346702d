// Package apperr defines the error taxonomy shared by the notebook and its consumers.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidTitle   = errors.New("invalid note title")
	ErrDuplicateTitle = errors.New("note already exists")
	ErrClosed         = errors.New("notebook is closed")
	// ErrWatchFailure means the filesystem notification stream died; the index
	// stays readable but no longer follows the directory until a rescan.
	ErrWatchFailure = errors.New("watch failure")
)
