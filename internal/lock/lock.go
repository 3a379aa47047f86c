// Package lock provides a lease-based distributed lock whose state lives in
// a shared store, for coordinating exclusive access to named resources
// across multiple service instances.
//
// The lock relies on a single atomic conditional write against the store:
// a record for the resource is inserted only if no unexpired record exists.
// The acquisition timeout doubles as the lease duration, so a holder that
// crashes without releasing becomes reclaimable once its lease expires,
// with no heartbeat protocol.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAcquireTimeout is returned when a lock could not be acquired
	// within the configured timeout.
	ErrAcquireTimeout = errors.New("lock acquisition timed out")

	// ErrIncomparable is returned by Compare when one of the values is
	// not a lock handle.
	ErrIncomparable = errors.New("value is not a lock handle")
)

// Store executes the two primitive operations the lease algorithm depends
// on. Implementations must make ConditionalInsert atomic with respect to
// concurrent callers on the same resource; it is the sole synchronization
// point of the whole lock.
type Store interface {
	// ConditionalInsert records resource as held at now, if and only if
	// no record for resource is newer than expiryThreshold. It returns
	// the number of rows written: 1 when the lease was taken, 0 when an
	// unexpired lease blocked it.
	ConditionalInsert(ctx context.Context, resource string, now, expiryThreshold time.Time) (int64, error)

	// Delete removes the record for resource only if it still carries
	// acquiredAt. A lease that expired and was reclaimed by another
	// holder has a different timestamp and is left untouched.
	Delete(ctx context.Context, resource string, acquiredAt time.Time) error

	// DeleteAll removes every record for resource regardless of owner.
	// Removing a resource that has no records is not an error.
	DeleteAll(ctx context.Context, resource string) error
}
