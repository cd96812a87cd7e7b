package repository

import "errors"

// Sentinel errors the HTTP layer maps onto response codes.
var (
	// ErrNotFound: a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLockHeld: a live lock on the pair belongs to another user.
	ErrLockHeld = errors.New("locked by another user")
	// ErrNoActiveLock: a write was attempted without holding the lock.
	ErrNoActiveLock = errors.New("no active lock")
	// ErrInvalidClass: an annotation references a class outside the project.
	ErrInvalidClass = errors.New("invalid class reference")
)
