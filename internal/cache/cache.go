// Package cache keeps checkout staging sessions in Redis so the checkout
// endpoints do not hit MySQL on every read.  The database stays the source
// of truth.  Entries carry the session version and a write never replaces
// an equal or newer one, so a write-back that loses a race with a later
// commit is dropped instead of resurrecting old state.  Completed sessions
// stay cached as tombstones until they expire.
package cache

import (
	"context"
	"errors"

	"github.com/iliyamo/resource-rental/internal/model"
)

// CheckoutCache stores staging sessions by token.
type CheckoutCache interface {
	Get(ctx context.Context, token string) (*model.CheckoutStaging, error)
	// Set stores s unless an entry with the same or a higher version is
	// already cached.
	Set(ctx context.Context, s *model.CheckoutStaging) error
	Delete(ctx context.Context, token string) error
}

// ErrCacheMiss is returned by Get when the token is not cached.
var ErrCacheMiss = errors.New("cache miss")
