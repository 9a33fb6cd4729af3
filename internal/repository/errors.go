// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// auth service and handlers to distinguish between different failure
// scenarios without inspecting driver-specific errors. For example,
// ErrUsernameExists and ErrEmailExists signal which unique constraint
// rejected a registration, while ErrNotFound replaces sql.ErrNoRows at
// the repository boundary.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers decide
// whether this is a 404 (contacts), a 401 (auth lookups) or a silent
// no-op (logout with an unknown refresh token).
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when an insert into users collides with
// the unique index on username. Safe to surface during registration since
// the caller supplied the value.
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when an insert into users collides with the
// unique index on email.
var ErrEmailExists = errors.New("email already exists")
