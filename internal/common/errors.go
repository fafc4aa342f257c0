// Package common defines shared constants and sentinel errors used across
// the moneta storage engine. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")
	ErrIO       = errors.New("storage failure")

	// Key-unwrap errors. ErrPassword means the supplied password could not
	// unwrap the store's master key; the store stays closed.
	ErrPassword = errors.New("incorrect password")

	// Model-level errors.
	ErrValidation = errors.New("validation failed")

	// Sync-level errors.
	ErrConflict = errors.New("revision conflict")

	// Lifecycle errors.
	ErrStoreClosed = errors.New("store is closed")
)
