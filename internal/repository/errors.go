// Package repository contains the data access layer: posts, their
// revisions and users.  Sentinel errors defined here let higher layers
// such as handlers tell failure scenarios apart without inspecting
// driver errors.
package repository

import "errors"

// ErrPostNotFound is returned when a post does not exist or is not
// visible to the caller.  Author-scoped lookups return it for posts owned
// by someone else as well, so existence is never leaked.  Handlers should
// translate it into an HTTP 404 response.
var ErrPostNotFound = errors.New("post not found")

// ErrRevisionNotFound is returned when a revision does not exist or does
// not belong to the given post.
var ErrRevisionNotFound = errors.New("revision not found")

// ErrConflict is returned when a write collides with a unique constraint,
// in practice two writers racing for the same slug.  Handlers should
// translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrInvalidCredentials is returned by authentication when the email is
// unknown or the password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")
