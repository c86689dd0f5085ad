package service

import (
	"context"
	"time"

	"phonebook/internal/domain/entity"
)

// SessionCache holds serialized principal snapshots keyed by email.
// It is an optimization only; callers must fall back to the store on any miss or error.
type SessionCache interface {
	// Get returns the snapshot and true on a hit, nil and false on a miss.
	Get(ctx context.Context, email string) ([]byte, bool, error)

	// Put stores the snapshot for ttl, replacing any previous value.
	Put(ctx context.Context, email string, snapshot []byte, ttl time.Duration) error

	// Invalidate removes the snapshot. Removing an absent key is not an error.
	Invalidate(ctx context.Context, email string) error
}

// SnapshotCodec converts principals to and from the opaque bytes kept in a SessionCache.
type SnapshotCodec interface {
	EncodeUser(user *entity.User) ([]byte, error)

	// DecodeUser fails for corrupt snapshots and for snapshots written in an unknown format version.
	DecodeUser(data []byte) (*entity.User, error)
}
