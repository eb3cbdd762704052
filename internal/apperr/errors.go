// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrProtected     = errors.New("protected path")
	ErrReadOnly      = errors.New("read-only mode")
	ErrNoDocument    = errors.New("no document open")
	ErrRejected      = errors.New("edit rejected")
	ErrInvalid       = errors.New("invalid argument")
)
