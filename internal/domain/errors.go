package domain

import "errors"

var (
	// ErrInvalidArgument is returned by constructors/setters when input
	// fails a syntactic invariant (§3).
	ErrInvalidArgument = errors.New("domain: invalid argument")
	// ErrParse is returned when a row or JSON payload cannot be decoded
	// into a model at all.
	ErrParse = errors.New("domain: parse error")
	// ErrInvalidModel is returned when a fully decoded model fails
	// Validate().
	ErrInvalidModel = errors.New("domain: model invariants violated")
)
