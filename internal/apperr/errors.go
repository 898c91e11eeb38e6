// Package apperr defines the sentinel errors shared across randpic layers.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNameConflict   = errors.New("name conflict")
	ErrUnknownKeyword = errors.New("unknown keyword")
	ErrInvalidName    = errors.New("invalid name")

	// ErrUnknownTrigger is not a failure: most chat text is not a trigger.
	ErrUnknownTrigger = errors.New("unknown trigger")
	ErrRateLimited    = errors.New("rate limited")
	ErrNoImages       = errors.New("no images")

	ErrEmptyCollection = errors.New("empty collection")
	ErrIO              = errors.New("io failure")
	ErrInvalidImage    = errors.New("invalid image")
)
