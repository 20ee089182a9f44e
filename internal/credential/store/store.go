// Package store persists issued stamps and nullifier claims.
package store

import (
	"errors"
)

// ErrNotFound is returned when a requested stamp does not exist.
var ErrNotFound = errors.New("not found")

const (
	redisClaimKeyPrefix = "credential:claim:"
)
