// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed domain validation (400-class).
var ErrValidation = errors.New("validation failed")

// ErrSecurity indicates a sandbox or path-traversal rejection. It is always
// fatal to the triggering operation and never downgraded to a warning.
var ErrSecurity = errors.New("not allowed")

// ErrBudget indicates the token budget for the current step was exceeded.
var ErrBudget = errors.New("token budget exceeded")
