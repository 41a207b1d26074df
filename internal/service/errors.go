package service

import "strings"

// ValidationError names every registration field that failed the
// required/shape checks, not just the first, so a client can fix them all
// in one round trip.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid registration request: " + strings.Join(e.Fields, ", ")
}

// ConflictError reports identity fields already present in the user store.
// Produced by the advisory pre-check and by the authoritative unique index
// when two requests race past the pre-check.
type ConflictError struct {
	Fields []string
}

func (e *ConflictError) Error() string {
	return "identity already registered: " + strings.Join(e.Fields, ", ")
}
